package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"retail-dashboard/internal/models"
)

const DefaultCountry = "United Kingdom"

var ErrInvalidParams = errors.New("invalid dashboard parameters")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Params is the complete input of one dashboard run besides the data itself.
// A zero Start or End resolves to the first or last date of the selected
// countries' transactions.
type Params struct {
	Countries []string  `json:"countries" validate:"dive,required"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Horizon   int       `json:"horizon" validate:"min=7,max=60"`
}

func DefaultParams(country string, horizon int) Params {
	if country == "" {
		country = DefaultCountry
	}
	if horizon == 0 {
		horizon = DefaultForecastHorizon
	}
	return Params{
		Countries: []string{country},
		Horizon:   horizon,
	}
}

func (p Params) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be between %d and %d, got %v", strings.ToLower(fe.Field()), MinForecastHorizon, MaxForecastHorizon, fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidParams, strings.Join(msgs, "; "))
}

func (p Params) filter() FilterParams {
	return FilterParams{Countries: p.Countries, Start: p.Start, End: p.End}
}

// Resolve fills a zero Start or End from the date range of the selected
// countries. It never widens an explicit bound.
func (p Params) Resolve(records []models.Transaction) Params {
	if p.Start.IsZero() || p.End.IsZero() {
		minDate, maxDate, ok := DateBounds(FilterCountries(records, p.Countries))
		if p.Start.IsZero() && ok {
			p.Start = minDate
		}
		if p.End.IsZero() && ok {
			p.End = maxDate
		}
	}

	if !p.Start.IsZero() {
		p.Start = DateOf(p.Start)
	}
	if !p.End.IsZero() {
		p.End = DateOf(p.End)
	}
	return p
}

type Result struct {
	Params Params `json:"params"`
	Aggregates
	Forecast models.Forecast      `json:"forecast"`
	Rows     []models.Transaction `json:"-"`
}

// Run filters records, aggregates the selection and forecasts daily sales.
// It holds no state between calls. A selection without any day of sales
// produces an empty degenerate forecast rather than an error.
func Run(records []models.Transaction, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	resolved := p.Resolve(records)
	rows := Filter(records, resolved.filter())
	aggregates := Aggregate(rows)

	forecast, err := Forecast(aggregates.Daily, resolved.Horizon)
	switch {
	case errors.Is(err, ErrNoObservations):
		forecast = models.Forecast{Points: []models.ForecastPoint{}, Degenerate: true}
	case err != nil:
		return nil, fmt.Errorf("forecast: %w", err)
	}

	return &Result{
		Params:     resolved,
		Aggregates: aggregates,
		Forecast:   forecast,
		Rows:       rows,
	}, nil
}
