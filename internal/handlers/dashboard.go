package handlers

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"retail-dashboard/internal/config"
	"retail-dashboard/internal/errors"
	"retail-dashboard/internal/observability"
	"retail-dashboard/internal/services"
)

const dateLayout = "2006-01-02"

const missingFilePrompt = "Upload your Online Retail.xlsx file to get started."

// dashboard is shared by the JSON and SSE handlers: it resolves the dataset
// named in the URL and runs the pipeline for one parameter set.
type dashboard struct {
	store   *services.DatasetStore
	cfg     config.DashboardConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

func (d *dashboard) defaults() services.Params {
	return services.DefaultParams(d.cfg.DefaultCountry, d.cfg.DefaultHorizon)
}

func (d *dashboard) dataset(r *http.Request) (*services.Dataset, error) {
	ds, err := d.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		return nil, toAppError(err)
	}
	return ds, nil
}

func (d *dashboard) run(r *http.Request, ds *services.Dataset, params services.Params) (*services.Result, error) {
	_, span := observability.StartSpan(r.Context(), "dashboard.run")
	defer span.Finish(d.logger)
	span.SetTag("dataset_id", ds.ID)

	start := time.Now()
	result, err := services.Run(ds.Records, params)
	d.metrics.ObservePipeline(time.Since(start), err)
	if err != nil {
		span.SetError(err)
		return nil, toAppError(err)
	}

	span.SetTag("rows", strconv.Itoa(len(result.Rows)))
	d.logger.Debug("dashboard computed",
		"dataset_id", ds.ID,
		"countries", result.Params.Countries,
		"start", result.Params.Start.Format(dateLayout),
		"end", result.Params.End.Format(dateLayout),
		"horizon", result.Params.Horizon,
		"rows", len(result.Rows),
		"degenerate_forecast", result.Forecast.Degenerate,
		"request_id", observability.GetRequestID(r.Context()),
	)
	return result, nil
}

// parseParams reads country, start, end and horizon from the query string on
// top of defaults. Repeated or comma separated country values are merged; an
// explicitly empty country parameter selects no country.
func parseParams(r *http.Request, defaults services.Params) (services.Params, error) {
	q := r.URL.Query()
	params := defaults

	if values, ok := q["country"]; ok {
		params.Countries = splitList(values)
	}

	var err error
	if params.Start, err = parseDate(q.Get("start"), params.Start); err != nil {
		return services.Params{}, errors.ValidationWrap(err, "start must be a date formatted YYYY-MM-DD")
	}
	if params.End, err = parseDate(q.Get("end"), params.End); err != nil {
		return services.Params{}, errors.ValidationWrap(err, "end must be a date formatted YYYY-MM-DD")
	}

	if h := q.Get("horizon"); h != "" {
		params.Horizon, err = strconv.Atoi(h)
		if err != nil {
			return services.Params{}, errors.ValidationWrap(err, "horizon must be a whole number of days")
		}
	}

	return params, nil
}

func parseDate(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	return time.Parse(dateLayout, value)
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func toAppError(err error) error {
	if appErr, ok := errors.As(err); ok {
		return appErr
	}

	var malformed *services.MalformedInputError
	var tooLarge *http.MaxBytesError

	switch {
	case stderrors.Is(err, services.ErrMissingFile):
		return errors.MissingFile(missingFilePrompt)
	case stderrors.As(err, &malformed):
		return errors.MalformedInputWrap(err, "The uploaded file could not be read").WithDetails(malformed.Error())
	case stderrors.As(err, &tooLarge):
		return errors.TooLarge(fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit))
	case stderrors.Is(err, services.ErrInvalidParams), stderrors.Is(err, services.ErrInvalidHorizon):
		return errors.ValidationWrap(err, "Invalid dashboard parameters").WithDetails(err.Error())
	case stderrors.Is(err, services.ErrDatasetNotFound):
		return errors.NotFound("Dataset not found or expired, upload the file again")
	default:
		return errors.InternalWrap(err, "An unexpected error occurred")
	}
}
