package services

import (
	"slices"
	"time"

	"retail-dashboard/internal/models"
)

// FilterParams selects transactions by country and by an inclusive date
// interval. Start and End are compared by calendar date only.
type FilterParams struct {
	Countries []string
	Start     time.Time
	End       time.Time
}

// Filter returns the transactions whose country is accepted and whose date
// lies in [Start, End]. An empty country set or Start after End selects
// nothing.
func Filter(records []models.Transaction, p FilterParams) []models.Transaction {
	start, end := DateOf(p.Start), DateOf(p.End)
	if len(p.Countries) == 0 || start.After(end) {
		return []models.Transaction{}
	}

	accepted := make(map[string]struct{}, len(p.Countries))
	for _, c := range p.Countries {
		accepted[c] = struct{}{}
	}

	result := make([]models.Transaction, 0, len(records))
	for _, tx := range records {
		if _, ok := accepted[tx.Country]; !ok {
			continue
		}
		if tx.Date.Before(start) || tx.Date.After(end) {
			continue
		}
		result = append(result, tx)
	}
	return result
}

// FilterCountries keeps the transactions from the accepted countries.
func FilterCountries(records []models.Transaction, countries []string) []models.Transaction {
	accepted := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		accepted[c] = struct{}{}
	}

	result := make([]models.Transaction, 0, len(records))
	for _, tx := range records {
		if _, ok := accepted[tx.Country]; ok {
			result = append(result, tx)
		}
	}
	return result
}

// Countries lists the distinct countries in records, sorted.
func Countries(records []models.Transaction) []string {
	seen := make(map[string]struct{})
	countries := make([]string, 0)
	for _, tx := range records {
		if _, ok := seen[tx.Country]; ok {
			continue
		}
		seen[tx.Country] = struct{}{}
		countries = append(countries, tx.Country)
	}
	slices.Sort(countries)
	return countries
}

// DateBounds returns the earliest and latest transaction dates. ok is false
// when records is empty.
func DateBounds(records []models.Transaction) (minDate, maxDate time.Time, ok bool) {
	if len(records) == 0 {
		return time.Time{}, time.Time{}, false
	}

	minDate, maxDate = records[0].Date, records[0].Date
	for _, tx := range records[1:] {
		if tx.Date.Before(minDate) {
			minDate = tx.Date
		}
		if tx.Date.After(maxDate) {
			maxDate = tx.Date
		}
	}
	return minDate, maxDate, true
}
