package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	InvoiceNo   string          `json:"invoice_no"`
	StockCode   string          `json:"stock_code"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CustomerID  string          `json:"customer_id"`
	Country     string          `json:"country"`
	InvoiceDate time.Time       `json:"invoice_date"`

	// Derived at load time.
	Sales decimal.Decimal `json:"sales"`
	Date  time.Time       `json:"date"`
}

type Summary struct {
	TotalSales      decimal.Decimal `json:"total_sales"`
	TotalOrders     int             `json:"total_orders"`
	UniqueCustomers int             `json:"unique_customers"`
	Rows            int             `json:"rows"`
}

type DailySales struct {
	Date  time.Time       `json:"date"`
	Sales decimal.Decimal `json:"sales"`
}

type ProductSales struct {
	Description string          `json:"description"`
	Sales       decimal.Decimal `json:"sales"`
}

type CountrySales struct {
	Country string          `json:"country"`
	Sales   decimal.Decimal `json:"sales"`
}

type ForecastPoint struct {
	Date           time.Time `json:"date"`
	PredictedSales float64   `json:"predicted_sales"`
}

// Forecast is a linear projection of daily sales. Degenerate is set when
// fewer than two distinct days were observed and no trend could be fitted.
type Forecast struct {
	Points     []ForecastPoint `json:"points"`
	Slope      float64         `json:"slope"`
	Intercept  float64         `json:"intercept"`
	Degenerate bool            `json:"degenerate"`
}
