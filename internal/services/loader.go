package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"retail-dashboard/internal/models"
)

const DefaultSheetName = "Online Retail"

const (
	colInvoiceNo   = "InvoiceNo"
	colStockCode   = "StockCode"
	colDescription = "Description"
	colQuantity    = "Quantity"
	colInvoiceDate = "InvoiceDate"
	colUnitPrice   = "UnitPrice"
	colCustomerID  = "CustomerID"
	colCountry     = "Country"
)

var requiredColumns = []string{
	colInvoiceNo, colStockCode, colDescription, colQuantity,
	colInvoiceDate, colUnitPrice, colCustomerID, colCountry,
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/06 15:04",
	"2006-01-02",
	"1/2/2006",
	"20060102",
}

// ErrMissingFile is returned when no input was provided at all.
var ErrMissingFile = errors.New("no input file provided")

// MalformedInputError reports input that cannot be turned into transactions.
// Row is the 1-based row in the source sheet, or 0 when the problem is not
// tied to a single row.
type MalformedInputError struct {
	Reason string
	Row    int
	Err    error
}

func (e *MalformedInputError) Error() string {
	msg := "malformed input: " + e.Reason
	if e.Row > 0 {
		msg = fmt.Sprintf("malformed input: row %d: %s", e.Row, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

type LoadOptions struct {
	SheetName string
}

// Load parses a transaction file, picking the decoder from the file
// extension. Files without an extension are treated as xlsx workbooks.
func Load(r io.Reader, filename string, opts LoadOptions) ([]models.Transaction, error) {
	if r == nil {
		return nil, ErrMissingFile
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		return LoadCSV(r)
	case ".xlsx", "":
		return LoadXLSX(r, opts.SheetName)
	default:
		return nil, &MalformedInputError{Reason: fmt.Sprintf("unsupported file type %q", ext)}
	}
}

func LoadXLSX(r io.Reader, sheet string) ([]models.Transaction, error) {
	if sheet == "" {
		sheet = DefaultSheetName
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &MalformedInputError{Reason: "unreadable workbook", Err: err}
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, &MalformedInputError{Reason: fmt.Sprintf("sheet %q not found", sheet)}
	}

	// Raw values keep dates as serial numbers instead of locale formatted text.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &MalformedInputError{Reason: fmt.Sprintf("read sheet %q", sheet), Err: err}
	}

	return parseRows(rows, true)
}

func LoadCSV(r io.Reader) ([]models.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &MalformedInputError{Reason: "unreadable csv", Err: err}
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}

	return parseRows(rows, false)
}

// parseRows cleans a header plus data rows. Numeric InvoiceDate values are
// read as Excel serial dates only when excelDates is set.
func parseRows(rows [][]string, excelDates bool) ([]models.Transaction, error) {
	if len(rows) == 0 {
		return nil, &MalformedInputError{Reason: "no header row"}
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.TrimSpace(name)
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MalformedInputError{Reason: "missing required columns: " + strings.Join(missing, ", ")}
	}

	transactions := make([]models.Transaction, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(row) {
			continue
		}

		cell := func(name string) string {
			idx := columns[name]
			if idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		// Incomplete records are dropped, not rejected.
		customerID := normalizeID(cell(colCustomerID))
		if customerID == "" || cell(colQuantity) == "" || cell(colUnitPrice) == "" || cell(colInvoiceDate) == "" {
			continue
		}

		quantity, err := parseQuantity(cell(colQuantity))
		if err != nil {
			return nil, &MalformedInputError{Reason: fmt.Sprintf("invalid %s %q", colQuantity, cell(colQuantity)), Row: rowNum}
		}

		unitPrice, err := decimal.NewFromString(cell(colUnitPrice))
		if err != nil {
			return nil, &MalformedInputError{Reason: fmt.Sprintf("invalid %s %q", colUnitPrice, cell(colUnitPrice)), Row: rowNum}
		}

		invoiceDate, err := parseTimestamp(cell(colInvoiceDate), excelDates)
		if err != nil {
			return nil, &MalformedInputError{Reason: fmt.Sprintf("unparsable %s %q", colInvoiceDate, cell(colInvoiceDate)), Row: rowNum}
		}

		transactions = append(transactions, models.Transaction{
			InvoiceNo:   cell(colInvoiceNo),
			StockCode:   cell(colStockCode),
			Description: cell(colDescription),
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			CustomerID:  customerID,
			Country:     cell(colCountry),
			InvoiceDate: invoiceDate,
			Sales:       unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
			Date:        DateOf(invoiceDate),
		})
	}

	return transactions, nil
}

// DateOf returns the calendar date of t as midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseTimestamp(value string, excelDates bool) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if !excelDates {
		return parseTimestampText(value)
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return t.Round(time.Second), nil
	}

	return parseTimestampText(value)
}

func parseTimestampText(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unknown timestamp format")
}

func parseQuantity(value string) (int, error) {
	if q, err := strconv.Atoi(value); err == nil {
		return q, nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("quantity %q is not a whole number", value)
	}
	return int(f), nil
}

// normalizeID maps spreadsheet renderings of a missing or numeric customer
// ID ("", "nan", "17850.0") to their canonical form.
func normalizeID(value string) string {
	if value == "" || strings.EqualFold(value, "nan") {
		return ""
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return value
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
