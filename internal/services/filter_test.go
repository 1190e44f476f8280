package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	records := sampleTransactions()

	tests := []struct {
		name     string
		params   FilterParams
		invoices []string
	}{
		{
			name:     "single country full range",
			params:   FilterParams{Countries: []string{"United Kingdom"}, Start: day("2010-12-01"), End: day("2010-12-05")},
			invoices: []string{"536365", "536365", "536366", "C536368"},
		},
		{
			name:     "inclusive bounds",
			params:   FilterParams{Countries: []string{"United Kingdom", "France"}, Start: day("2010-12-02"), End: day("2010-12-02")},
			invoices: []string{"536366", "536367"},
		},
		{
			name:     "time of day on bounds is ignored",
			params:   FilterParams{Countries: []string{"Germany"}, Start: day("2010-12-05").Add(23 * time.Hour), End: day("2010-12-05").Add(time.Second)},
			invoices: []string{"536369"},
		},
		{
			name:     "start after end",
			params:   FilterParams{Countries: []string{"United Kingdom"}, Start: day("2010-12-05"), End: day("2010-12-01")},
			invoices: []string{},
		},
		{
			name:     "no countries",
			params:   FilterParams{Start: day("2010-12-01"), End: day("2010-12-05")},
			invoices: []string{},
		},
		{
			name:     "absent country",
			params:   FilterParams{Countries: []string{"Iceland"}, Start: day("2010-12-01"), End: day("2010-12-05")},
			invoices: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(records, tt.params)

			invoices := make([]string, 0, len(got))
			for _, tx := range got {
				invoices = append(invoices, tx.InvoiceNo)
			}
			assert.Equal(t, tt.invoices, invoices)
		})
	}
}

func TestFilter_Idempotent(t *testing.T) {
	params := FilterParams{Countries: []string{"United Kingdom", "Germany"}, Start: day("2010-12-01"), End: day("2010-12-04")}

	once := Filter(sampleTransactions(), params)
	twice := Filter(once, params)

	assert.Equal(t, once, twice)
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	records := sampleTransactions()
	before := append(records[:0:0], records...)

	Filter(records, FilterParams{Countries: []string{"France"}, Start: day("2010-12-01"), End: day("2010-12-31")})

	assert.Equal(t, before, records)
}

func TestCountriesAndDateBounds(t *testing.T) {
	records := sampleTransactions()

	assert.Equal(t, []string{"France", "Germany", "United Kingdom"}, Countries(records))

	minDate, maxDate, ok := DateBounds(records)
	assert.True(t, ok)
	assert.Equal(t, day("2010-12-01"), minDate)
	assert.Equal(t, day("2010-12-05"), maxDate)

	_, _, ok = DateBounds(nil)
	assert.False(t, ok)
	assert.Empty(t, Countries(nil))
}
