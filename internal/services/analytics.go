package services

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"retail-dashboard/internal/models"
)

const topProductsLimit = 10

type Aggregates struct {
	Summary     models.Summary        `json:"summary"`
	Daily       []models.DailySales   `json:"daily"`
	TopProducts []models.ProductSales `json:"top_products"`
	Countries   []models.CountrySales `json:"countries"`
}

// Aggregate computes the headline metrics and the daily, product and country
// groupings of records. An empty input yields zero metrics and empty groups.
func Aggregate(records []models.Transaction) Aggregates {
	total := decimal.Zero
	invoices := make(map[string]struct{})
	customers := make(map[string]struct{})

	dailyGroups := make(map[time.Time]decimal.Decimal)
	productGroups := make(map[string]decimal.Decimal)
	countryGroups := make(map[string]decimal.Decimal)

	for _, tx := range records {
		total = total.Add(tx.Sales)
		invoices[tx.InvoiceNo] = struct{}{}
		customers[tx.CustomerID] = struct{}{}

		dailyGroups[tx.Date] = dailyGroups[tx.Date].Add(tx.Sales)
		productGroups[tx.Description] = productGroups[tx.Description].Add(tx.Sales)
		countryGroups[tx.Country] = countryGroups[tx.Country].Add(tx.Sales)
	}

	return Aggregates{
		Summary: models.Summary{
			TotalSales:      total,
			TotalOrders:     len(invoices),
			UniqueCustomers: len(customers),
			Rows:            len(records),
		},
		Daily:       sortDailySales(dailyGroups),
		TopProducts: sortTopProducts(productGroups, topProductsLimit),
		Countries:   sortCountrySales(countryGroups),
	}
}

func sortDailySales(groups map[time.Time]decimal.Decimal) []models.DailySales {
	result := make([]models.DailySales, 0, len(groups))
	for date, sales := range groups {
		result = append(result, models.DailySales{Date: date, Sales: sales})
	}
	slices.SortFunc(result, func(a, b models.DailySales) int {
		return a.Date.Compare(b.Date)
	})
	return result
}

// Equal sums are ordered by description so the top-N cut is deterministic.
func sortTopProducts(groups map[string]decimal.Decimal, limit int) []models.ProductSales {
	result := make([]models.ProductSales, 0, len(groups))
	for description, sales := range groups {
		result = append(result, models.ProductSales{Description: description, Sales: sales})
	}
	slices.SortFunc(result, func(a, b models.ProductSales) int {
		if c := b.Sales.Cmp(a.Sales); c != 0 {
			return c
		}
		return strings.Compare(a.Description, b.Description)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

func sortCountrySales(groups map[string]decimal.Decimal) []models.CountrySales {
	result := make([]models.CountrySales, 0, len(groups))
	for country, sales := range groups {
		result = append(result, models.CountrySales{Country: country, Sales: sales})
	}
	slices.SortFunc(result, func(a, b models.CountrySales) int {
		if c := b.Sales.Cmp(a.Sales); c != 0 {
			return c
		}
		return strings.Compare(a.Country, b.Country)
	})
	return result
}
