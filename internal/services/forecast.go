package services

import (
	"errors"
	"fmt"
	"time"

	"retail-dashboard/internal/models"
)

const secondsPerDay = 24 * 60 * 60

const (
	MinForecastHorizon     = 7
	MaxForecastHorizon     = 60
	DefaultForecastHorizon = 14
)

var (
	ErrInvalidHorizon = fmt.Errorf("forecast horizon must be between %d and %d days", MinForecastHorizon, MaxForecastHorizon)

	// ErrDegenerateForecast marks inputs with fewer than two distinct days.
	ErrDegenerateForecast = errors.New("degenerate forecast")
	ErrNoObservations     = fmt.Errorf("%w: no daily sales observed", ErrDegenerateForecast)
)

// LinearModel is the least-squares line y = Slope*x + Intercept.
type LinearModel struct {
	Slope     float64
	Intercept float64
}

func (m LinearModel) Predict(x float64) float64 {
	return m.Slope*x + m.Intercept
}

// FitLinear fits an ordinary least-squares line through (xs[i], ys[i]).
// When all xs are equal the slope is undefined; the line is then flat at the
// mean of ys and ErrDegenerateForecast is returned alongside it.
func FitLinear(xs, ys []float64) (LinearModel, error) {
	if len(xs) != len(ys) {
		return LinearModel{}, fmt.Errorf("fit linear: %d x values but %d y values", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return LinearModel{}, ErrNoObservations
	}

	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - meanX
		sxx += dx * dx
		sxy += dx * (ys[i] - meanY)
	}

	if sxx == 0 {
		return LinearModel{Intercept: meanY}, ErrDegenerateForecast
	}

	slope := sxy / sxx
	return LinearModel{Slope: slope, Intercept: meanY - slope*meanX}, nil
}

// Forecast projects daily sales horizon days past the last observed date.
// The regressor is the number of days since the first observed date. A single
// observed day yields a flat forecast at that day's sales. Predictions are not
// clamped and may be negative.
func Forecast(daily []models.DailySales, horizon int) (models.Forecast, error) {
	if horizon < MinForecastHorizon || horizon > MaxForecastHorizon {
		return models.Forecast{}, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizon)
	}
	if len(daily) == 0 {
		return models.Forecast{}, ErrNoObservations
	}

	first := daily[0].Date
	xs := make([]float64, len(daily))
	ys := make([]float64, len(daily))
	maxOffset := 0
	for i, d := range daily {
		offset := daysBetween(first, d.Date)
		if offset > maxOffset {
			maxOffset = offset
		}
		xs[i] = float64(offset)
		ys[i] = d.Sales.InexactFloat64()
	}

	model, err := FitLinear(xs, ys)
	degenerate := errors.Is(err, ErrDegenerateForecast)
	if err != nil && !degenerate {
		return models.Forecast{}, fmt.Errorf("fit daily sales: %w", err)
	}

	lastDate := first.AddDate(0, 0, maxOffset)
	points := make([]models.ForecastPoint, horizon)
	for i := range points {
		step := i + 1
		points[i] = models.ForecastPoint{
			Date:           lastDate.AddDate(0, 0, step),
			PredictedSales: model.Predict(float64(maxOffset + step)),
		}
	}

	return models.Forecast{
		Points:     points,
		Slope:      model.Slope,
		Intercept:  model.Intercept,
		Degenerate: degenerate,
	}, nil
}

// daysBetween counts calendar days from from to to, including spans longer
// than a time.Duration can hold.
func daysBetween(from, to time.Time) int {
	return int((DateOf(to).Unix() - DateOf(from).Unix()) / secondsPerDay)
}
