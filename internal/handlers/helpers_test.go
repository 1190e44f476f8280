package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"retail-dashboard/internal/config"
	"retail-dashboard/internal/observability"
	"retail-dashboard/internal/services"
)

// Three United Kingdom days (15.30, 20.00, 30.00) and one French row.
const retailCSV = "InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country\n" +
	"536365,85123A,WHITE HANGING HEART T-LIGHT HOLDER,6,2010-12-01 08:26:00,2.55,17850,United Kingdom\n" +
	"536366,22633,HAND WARMER UNION JACK,2,2010-12-02 09:00:00,10,17851,United Kingdom\n" +
	"536367,84879,ASSORTED COLOUR BIRD ORNAMENT,1,2010-12-03 10:15:00,30,17850,United Kingdom\n" +
	"536368,22752,SET 7 BABUSHKA NESTING BOXES,4,2010-12-02 11:30:00,2.5,12583,France\n"

type testEnv struct {
	router  chi.Router
	store   *services.DatasetStore
	metrics *observability.Metrics
	dataset *services.Dataset
}

func testDashboardConfig() config.DashboardConfig {
	return config.DashboardConfig{
		SheetName:      services.DefaultSheetName,
		DefaultCountry: "United Kingdom",
		DefaultHorizon: 14,
		MaxUploadBytes: 1 << 20,
		DatasetTTL:     time.Minute,
	}
}

func newTestEnv(t *testing.T, cfg config.DashboardConfig) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := services.NewDatasetStore(cfg.DatasetTTL)
	metrics := observability.NewMetrics()

	records, err := services.LoadCSV(strings.NewReader(retailCSV))
	require.NoError(t, err)
	ds := store.Put("retail.csv", records)

	api := NewAPIHandlers(store, cfg, metrics, logger)
	sse := NewSSEHandlers(store, cfg, metrics, logger)

	r := chi.NewRouter()
	r.Post("/api/datasets", api.HandleUpload)
	r.Get("/api/datasets/{id}", api.HandleDataset)
	r.Delete("/api/datasets/{id}", api.HandleDeleteDataset)
	r.Get("/api/datasets/{id}/dashboard", api.HandleDashboard)
	r.Get("/api/datasets/{id}/rows", api.HandleRows)
	r.Get("/api/datasets/{id}/forecast.csv", api.HandleForecastCSV)
	r.Get("/sse/datasets/{id}/dashboard", sse.HandleDashboard)
	r.Get("/health", api.HandleHealth)
	r.Get("/admin/stats", api.HandleStats)

	return &testEnv{router: r, store: store, metrics: metrics, dataset: ds}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, target, nil))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func multipartUpload(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func httpRequest(method, target, body string) *http.Request {
	return httptest.NewRequest(method, target, strings.NewReader(body))
}

func scrape(env *testEnv) (string, error) {
	rec := httptest.NewRecorder()
	env.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	b, err := io.ReadAll(rec.Body)
	return string(b), err
}
