package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"retail-dashboard/internal/models"
)

var retailHeader = []string{
	"InvoiceNo", "StockCode", "Description", "Quantity",
	"InvoiceDate", "UnitPrice", "CustomerID", "Country",
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTx(invoice, description, country, customer, date string, quantity int, price string) models.Transaction {
	unitPrice := decimal.RequireFromString(price)
	ts := day(date).Add(10 * time.Hour)
	return models.Transaction{
		InvoiceNo:   invoice,
		StockCode:   "SC-" + invoice,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		CustomerID:  customer,
		Country:     country,
		InvoiceDate: ts,
		Sales:       unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Date:        DateOf(ts),
	}
}

func sampleTransactions() []models.Transaction {
	return []models.Transaction{
		newTx("536365", "WHITE HANGING HEART T-LIGHT HOLDER", "United Kingdom", "17850", "2010-12-01", 6, "2.55"),
		newTx("536365", "WHITE METAL LANTERN", "United Kingdom", "17850", "2010-12-01", 6, "3.39"),
		newTx("536366", "HAND WARMER UNION JACK", "United Kingdom", "17851", "2010-12-02", 6, "1.85"),
		newTx("536367", "ASSORTED COLOUR BIRD ORNAMENT", "France", "12583", "2010-12-02", 32, "1.69"),
		newTx("C536368", "WHITE METAL LANTERN", "United Kingdom", "17850", "2010-12-03", -2, "3.39"),
		newTx("536369", "POPPY'S PLAYHOUSE BEDROOM", "Germany", "12662", "2010-12-05", 12, "2.10"),
	}
}

func buildWorkbook(t *testing.T, sheet string, header []string, rows [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &rows[i]))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}
