package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"retail-dashboard/internal/models"
)

const (
	ForecastFilename = "sales_forecast.csv"
	forecastDate     = "2006-01-02"
)

var forecastHeader = []string{"Date", "Predicted Sales"}

// WriteForecastCSV writes one row per forecast point under a
// "Date,Predicted Sales" header. Values use the shortest decimal form that
// parses back to the same float, so output is byte-stable for equal input.
func WriteForecastCSV(w io.Writer, points []models.ForecastPoint) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(forecastHeader); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i, p := range points {
		record := []string{
			p.Date.Format(forecastDate),
			strconv.FormatFloat(p.PredictedSales, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func ForecastCSV(points []models.ForecastPoint) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteForecastCSV(&buf, points); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseForecastCSV reads back a file produced by WriteForecastCSV.
func ParseForecastCSV(r io.Reader) ([]models.ForecastPoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(forecastHeader)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read forecast csv: %w", err)
	}
	if len(records) == 0 || records[0][0] != forecastHeader[0] || records[0][1] != forecastHeader[1] {
		return nil, &MalformedInputError{Reason: "forecast csv header must be Date,Predicted Sales"}
	}

	points := make([]models.ForecastPoint, 0, len(records)-1)
	for i, record := range records[1:] {
		date, err := time.Parse(forecastDate, record[0])
		if err != nil {
			return nil, &MalformedInputError{Reason: "invalid date", Row: i + 2, Err: err}
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, &MalformedInputError{Reason: "invalid predicted sales", Row: i + 2, Err: err}
		}
		points = append(points, models.ForecastPoint{Date: date, PredictedSales: value})
	}
	return points, nil
}
