package main

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-dashboard/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            9090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    20 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Logger: config.LoggerConfig{Level: "error", Format: "text"},
		Security: config.SecurityConfig{
			RateLimitRPS:   100,
			RateLimitBurst: 20,
		},
		Dashboard: config.DashboardConfig{
			SheetName:      "Online Retail",
			DefaultCountry: "United Kingdom",
			DefaultHorizon: 14,
			MaxUploadBytes: 1 << 20,
			DatasetTTL:     time.Minute,
		},
	}
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newApp(testConfig(), logger)
}

func TestNewApp_ServerSettings(t *testing.T) {
	a := newTestApp(t)

	assert.Equal(t, "localhost:9090", a.httpServer.Addr)
	assert.Equal(t, 15*time.Second, a.httpServer.ReadTimeout)
	assert.Equal(t, 20*time.Second, a.httpServer.WriteTimeout)
	assert.Equal(t, 60*time.Second, a.httpServer.IdleTimeout)
	assert.Equal(t, 0, a.store.Len())
}

// Integration tests for HTTP routes
func TestApp_Routes(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/health", http.StatusOK, "application/json"},
		{"/admin/stats", http.StatusOK, "application/json"},
		{"/metrics", http.StatusOK, "text/plain"},
		{"/api/datasets/3f1b8f2e-8d4c-4b55-9a55-1d2f7c9e0a11", http.StatusNotFound, "application/json"},
		{"/api/datasets/3f1b8f2e-8d4c-4b55-9a55-1d2f7c9e0a11/dashboard", http.StatusNotFound, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)

			a.httpServer.Handler.ServeHTTP(w, r)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), tt.contentType)

			if tt.contentType == "application/json" {
				var result any
				assert.NoError(t, json.NewDecoder(w.Body).Decode(&result), "invalid json")
			}
		})
	}
}

func TestApp_UploadIsCounted(t *testing.T) {
	a := newTestApp(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "retail.csv")
	require.NoError(t, err)
	_, err = io.WriteString(part, "InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country\n"+
		"536365,85123A,WHITE HANGING HEART T-LIGHT HOLDER,6,2010-12-01 08:26:00,2.55,17850,United Kingdom\n")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/datasets", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, a.store.Len())

	w = httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(w.Body.String(), "retail_dashboard_datasets_cached 1"))
}
