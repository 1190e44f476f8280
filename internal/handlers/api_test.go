package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleUpload(t *testing.T) {
	env := newTestEnv(t, testDashboardConfig())

	rec := env.do(multipartUpload(t, "file", "Online Retail.csv", []byte(retailCSV)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeEnvelope(t, rec)
	require.True(t, resp.Success)

	var info struct {
		ID        string   `json:"id"`
		Filename  string   `json:"filename"`
		Rows      int      `json:"rows"`
		Countries []string `json:"countries"`
		Defaults  struct {
			Countries []string `json:"countries"`
			Horizon   int      `json:"horizon"`
		} `json:"defaults"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "Online Retail.csv", info.Filename)
	assert.Equal(t, 4, info.Rows)
	assert.Equal(t, []string{"France", "United Kingdom"}, info.Countries)
	assert.Equal(t, []string{"United Kingdom"}, info.Defaults.Countries)
	assert.Equal(t, 14, info.Defaults.Horizon)

	_, err := env.store.Get(info.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, env.store.Len())
}

func TestHandleUpload_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		maxBytes int64
		status   int
		code     string
	}{
		{
			name:   "no file field",
			req:    func(t *testing.T) *http.Request { return multipartUpload(t, "", "", nil) },
			status: http.StatusBadRequest,
			code:   "MISSING_FILE",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httpRequest(http.MethodPost, "/api/datasets", "plain body")
			},
			status: http.StatusBadRequest,
			code:   "MISSING_FILE",
		},
		{
			name: "missing columns",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "file", "retail.csv", []byte("InvoiceNo,Country\n1,France\n"))
			},
			status: http.StatusUnprocessableEntity,
			code:   "MALFORMED_INPUT",
		},
		{
			name: "unsupported extension",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "file", "retail.pdf", []byte("%PDF"))
			},
			status: http.StatusUnprocessableEntity,
			code:   "MALFORMED_INPUT",
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "file", "retail.csv", bytes.Repeat([]byte("x"), 4096))
			},
			maxBytes: 1024,
			status:   http.StatusRequestEntityTooLarge,
			code:     "PAYLOAD_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testDashboardConfig()
			if tt.maxBytes > 0 {
				cfg.MaxUploadBytes = tt.maxBytes
			}
			env := newTestEnv(t, cfg)

			rec := env.do(tt.req(t))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			resp := decodeEnvelope(t, rec)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, 1, env.store.Len(), "failed uploads must not be stored")
		})
	}
}

func TestHandleUpload_CountsOutcomes(t *testing.T) {
	env := newTestEnv(t, testDashboardConfig())

	env.do(multipartUpload(t, "file", "retail.csv", []byte(retailCSV)))
	env.do(multipartUpload(t, "", "", nil))

	body, err := scrape(env)
	require.NoError(t, err)
	assert.Contains(t, body, `retail_dashboard_uploads_total{outcome="ok"} 1`)
	assert.Contains(t, body, `retail_dashboard_uploads_total{outcome="error"} 1`)
	assert.Contains(t, body, `retail_dashboard_rows_loaded_total 4`)
}

func TestHandleDataset(t *testing.T) {
	env := newTestEnv(t, testDashboardConfig())

	rec := env.get("/api/datasets/" + env.dataset.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var info struct {
		MinDate string `json:"min_date"`
		MaxDate string `json:"max_date"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &info))
	assert.True(t, strings.HasPrefix(info.MinDate, "2010-12-01"))
	assert.True(t, strings.HasPrefix(info.MaxDate, "2010-12-03"))

	rec = env.get("/api/datasets/not-a-uuid")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, rec).Error.Code)
}

func TestHandleDeleteDataset(t *testing.T) {
	env := newTestEnv(t, testDashboardConfig())
	target := "/api/datasets/" + env.dataset.ID

	rec := env.do(httpRequest(http.MethodDelete, target, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, env.get(target).Code)
	assert.Equal(t, http.StatusNotFound, env.do(httpRequest(http.MethodDelete, target, "")).Code)
}

func TestHandleDashboard_Defaults(t *testing.T) {
	env := newTestEnv(t, testDashboardConfig())

	rec := env.get("/api/datasets/" + env.dataset.ID + "/dashboard")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "private, max-age=60", rec.Header().Get("Cache-Control"))

	var result struct {
		Params struct {
			Countries []string `json:"countries"`
			Start     string   `json:"start"`
			End       string   `json:"end"`
			Horizon   int      `json:"horizon"`
		} `json:"params"`
		Summary struct {
			TotalSales      string `json:"total_sales"`
			TotalOrders     int    `json:"total_orders"`
			UniqueCustomers int    `json:"unique_customers"`
		} `json:"summary"`
		Daily    []json.RawMessage `json:"daily"`
		Forecast struct {
			Points []struct {
				Date string `json:"date"`
			} `json:"points"`
			Degenerate bool `json:"degenerate"`
		} `json:"forecast"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &result))

	assert.Equal(t, []string{"United Kingdom"}, result.Params.Countries)
	assert.True(t, strings.HasPrefix(result.Params.Start, "2010-12-01"))
	assert.True(t, strings.HasPrefix(result.Params.End, "2010-12-03"))
	assert.Equal(t, 14, result.Params.Horizon)

	assert.Equal(t, "65.3", result.Summary.TotalSales)
	assert.Equal(t, 3, result.Summary.TotalOrders)
	assert.Equal(t, 2, result.Summary.UniqueCustomers)
	assert.Len(t, result.Daily, 3)

	require.Len(t, result.Forecast.Points, 14)
	assert.True(t, strings.HasPrefix(result.Forecast.Points[0].Date, "2010-12-04"))
	assert.False(t, result.Forecast.Degenerate)
}

func TestHandleDashboard_QueryParams(t *testing.T) {
	env := newTestEnv(t, testDashboardConfig())
	base := "/api/datasets/" + env.dataset.ID + "/dashboard"

	tests := []struct {
		name   string
		query  string
		status int
		orders int
		points int
	}{
		{name: "all countries", query: "?country=United+Kingdom&country=France", status: http.StatusOK, orders: 4, points: 14},
		{name: "comma list", query: "?country=United+Kingdom,France&horizon=30", status: http.StatusOK, orders: 4, points: 30},
		{name: "narrow range", query: "?start=2010-12-02&end=2010-12-02", status: http.StatusOK, orders: 1, points: 14},
		{name: "empty country set", query: "?country=", status: http.StatusOK, orders: 0, points: 0},
		{name: "start after end", query: "?start=2010-12-03&end=2010-12-01", status: http.StatusOK, orders: 0, points: 0},
		{name: "horizon too small", query: "?horizon=3", status: http.StatusBadRequest},
		{name: "horizon not a number", query: "?horizon=two", status: http.StatusBadRequest},
		{name: "bad start", query: "?start=01/12/2010", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.get(base + tt.query)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			resp := decodeEnvelope(t, rec)
			if tt.status != http.StatusOK {
				require.NotNil(t, resp.Error)
				assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
				return
			}

			var result struct {
				Summary struct {
					TotalOrders int `json:"total_orders"`
				} `json:"summary"`
				Forecast struct {
					Points []json.RawMessage `json:"points"`
				} `json:"forecast"`
			}
			require.NoError(t, json.Unmarshal(resp.Data, &result))
			assert.Equal(t, tt.orders, result.Summary.TotalOrders)
			assert.Len(t, result.Forecast.Points, tt.points)
		})
	}
}

func TestHandleRows(t *testing.T) {
	env := newTestEnv(t, testDashboardConfig())

	rec := env.get("/api/datasets/" + env.dataset.ID + "/rows?country=France")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows struct {
		Count int `json:"count"`
		Rows  []struct {
			InvoiceNo string `json:"invoice_no"`
			Sales     string `json:"sales"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &rows))
	assert.Equal(t, 1, rows.Count)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, "536368", rows.Rows[0].InvoiceNo)
	assert.Equal(t, "10", rows.Rows[0].Sales)
}

func TestHandleForecastCSV(t *testing.T) {
	env := newTestEnv(t, testDashboardConfig())

	rec := env.get("/api/datasets/" + env.dataset.ID + "/forecast.csv?horizon=7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="sales_forecast.csv"`, rec.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "Date,Predicted Sales", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2010-12-04,"))
	assert.True(t, strings.HasPrefix(lines[7], "2010-12-10,"))
}

func TestHandleForecastCSV_UnknownDataset(t *testing.T) {
	env := newTestEnv(t, testDashboardConfig())

	rec := env.get("/api/datasets/3f1b8f2e-8d4c-4b55-9a55-1d2f7c9e0a11/forecast.csv")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestHandleHealthAndStats(t *testing.T) {
	env := newTestEnv(t, testDashboardConfig())

	rec := env.get("/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = env.get("/admin/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &stats))
	assert.EqualValues(t, 1, stats["datasets"])
	assert.Equal(t, "United Kingdom", stats["default_country"])
}

func TestPipelineMetrics(t *testing.T) {
	env := newTestEnv(t, testDashboardConfig())

	env.get("/api/datasets/" + env.dataset.ID + "/dashboard")
	env.get("/api/datasets/" + env.dataset.ID + "/dashboard?horizon=99")

	body, err := scrape(env)
	require.NoError(t, err)
	assert.Contains(t, body, `retail_dashboard_pipeline_runs_total{outcome="ok"} 1`)
	assert.Contains(t, body, `retail_dashboard_pipeline_runs_total{outcome="error"} 1`)
}
