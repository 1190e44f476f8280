package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"retail-dashboard/internal/config"
	"retail-dashboard/internal/errors"
	"retail-dashboard/internal/observability"
	"retail-dashboard/internal/services"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

type APIHandlers struct {
	dashboard
	startedAt time.Time
}

func NewAPIHandlers(store *services.DatasetStore, cfg config.DashboardConfig, metrics *observability.Metrics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		dashboard: dashboard{
			store:   store,
			cfg:     cfg,
			metrics: metrics,
			logger:  logger,
		},
		startedAt: time.Now(),
	}
}

// HandleUpload parses the multipart "file" field into a cleaned dataset and
// caches it for later dashboard requests.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			h.metrics.ObserveUpload(0, err)
			errors.WriteError(w, r, h.logger, toAppError(err))
			return
		}
		if !stderrors.Is(err, http.ErrNotMultipart) && !stderrors.Is(err, http.ErrMissingBoundary) {
			h.metrics.ObserveUpload(0, err)
			errors.WriteError(w, r, h.logger, errors.BadRequestWrap(err, "Could not read the upload"))
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.metrics.ObserveUpload(0, err)
		errors.WriteError(w, r, h.logger, toAppError(services.ErrMissingFile))
		return
	}
	defer file.Close()

	ctx, span := observability.StartSpan(r.Context(), "dataset.load")
	span.SetTag("filename", header.Filename)

	records, err := services.Load(file, header.Filename, services.LoadOptions{SheetName: h.cfg.SheetName})
	h.metrics.ObserveUpload(len(records), err)
	if err != nil {
		span.SetError(err)
		span.Finish(h.logger)
		errors.WriteError(w, r, h.logger, toAppError(err))
		return
	}
	span.Finish(h.logger)

	ds := h.store.Put(header.Filename, records)

	h.logger.Info("dataset uploaded",
		"dataset_id", ds.ID,
		"filename", header.Filename,
		"size", header.Size,
		"rows", len(records),
		"request_id", observability.GetRequestID(ctx),
	)

	errors.WriteSuccess(w, r, ds.Info(h.defaults()))
}

func (h *APIHandlers) HandleDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := h.dataset(r)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}

	errors.WriteSuccess(w, r, ds.Info(h.defaults()))
}

func (h *APIHandlers) HandleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.Get(id); err != nil {
		errors.WriteError(w, r, h.logger, toAppError(err))
		return
	}

	h.store.Delete(id)
	h.logger.Info("dataset deleted", "dataset_id", id, "request_id", observability.GetRequestID(r.Context()))

	errors.WriteSuccess(w, r, map[string]string{"id": id})
}

// HandleDashboard returns the summary, chart aggregates and forecast for the
// parameters in the query string.
func (h *APIHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	result, ok := h.compute(w, r)
	if !ok {
		return
	}

	headers := map[string]string{
		"Cache-Control": "private, max-age=60",
	}

	errors.WriteSuccessWithHeaders(w, r, result, headers)
}

// HandleRows returns the filtered transactions behind the dashboard.
func (h *APIHandlers) HandleRows(w http.ResponseWriter, r *http.Request) {
	result, ok := h.compute(w, r)
	if !ok {
		return
	}

	errors.WriteSuccess(w, r, map[string]any{
		"params": result.Params,
		"count":  len(result.Rows),
		"rows":   result.Rows,
	})
}

// HandleForecastCSV streams the forecast as a downloadable CSV file.
func (h *APIHandlers) HandleForecastCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := h.compute(w, r)
	if !ok {
		return
	}

	body, err := services.ForecastCSV(result.Forecast.Points)
	if err != nil {
		errors.WriteError(w, r, h.logger, errors.InternalWrap(err, "Could not export the forecast"))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+services.ForecastFilename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write forecast csv", "error", err, "request_id", observability.GetRequestID(r.Context()))
	}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, r, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"datasets":        h.store.Len(),
		"uptime_seconds":  int(time.Since(h.startedAt).Seconds()),
		"default_country": h.cfg.DefaultCountry,
		"default_horizon": h.cfg.DefaultHorizon,
		"max_upload":      h.cfg.MaxUploadBytes,
		"dataset_ttl":     h.cfg.DatasetTTL.String(),
	}

	errors.WriteSuccess(w, r, stats)
}

func (h *APIHandlers) compute(w http.ResponseWriter, r *http.Request) (*services.Result, bool) {
	ds, err := h.dataset(r)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return nil, false
	}

	params, err := parseParams(r, h.defaults())
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return nil, false
	}

	result, err := h.run(r, ds, params)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return nil, false
	}
	return result, true
}
