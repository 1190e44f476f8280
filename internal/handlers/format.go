package handlers

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"retail-dashboard/internal/models"
)

// formatMoney renders an amount as £1,234.56.
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	return sign + "£" + groupThousands(whole) + "." + frac
}

func formatCount(n int) string {
	if n < 0 {
		return "-" + groupThousands(strconv.Itoa(-n))
	}
	return groupThousands(strconv.Itoa(n))
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// chartSeries is the label/value shape the page's charts consume.
type chartSeries struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

func dailySeries(daily []models.DailySales) chartSeries {
	s := chartSeries{Labels: make([]string, 0, len(daily)), Values: make([]float64, 0, len(daily))}
	for _, d := range daily {
		s.Labels = append(s.Labels, d.Date.Format(dateLayout))
		s.Values = append(s.Values, d.Sales.InexactFloat64())
	}
	return s
}

func productSeries(products []models.ProductSales) chartSeries {
	s := chartSeries{Labels: make([]string, 0, len(products)), Values: make([]float64, 0, len(products))}
	for _, p := range products {
		s.Labels = append(s.Labels, p.Description)
		s.Values = append(s.Values, p.Sales.InexactFloat64())
	}
	return s
}

func countrySeries(countries []models.CountrySales) chartSeries {
	s := chartSeries{Labels: make([]string, 0, len(countries)), Values: make([]float64, 0, len(countries))}
	for _, c := range countries {
		s.Labels = append(s.Labels, c.Country)
		s.Values = append(s.Values, c.Sales.InexactFloat64())
	}
	return s
}

func forecastSeries(points []models.ForecastPoint) chartSeries {
	s := chartSeries{Labels: make([]string, 0, len(points)), Values: make([]float64, 0, len(points))}
	for _, p := range points {
		s.Labels = append(s.Labels, p.Date.Format(dateLayout))
		s.Values = append(s.Values, p.PredictedSales)
	}
	return s
}
