package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"retail-dashboard/internal/config"
	"retail-dashboard/internal/errors"
	"retail-dashboard/internal/models"
	"retail-dashboard/internal/observability"
	"retail-dashboard/internal/services"
)

const maxTableRows = 100

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"money": formatMoney,
	"count": formatCount,
	"date":  func(t time.Time) string { return t.Format(dateLayout) },
}).Parse(`
<div id="dashboard-error"></div>
<div id="metrics" class="metrics">
<div class="metric"><span class="metric-label">Total Sales</span><span class="metric-value">{{money .Summary.TotalSales}}</span></div>
<div class="metric"><span class="metric-label">Total Orders</span><span class="metric-value">{{count .Summary.TotalOrders}}</span></div>
<div class="metric"><span class="metric-label">Unique Customers</span><span class="metric-value">{{count .Summary.UniqueCustomers}}</span></div>
</div>
<div id="forecast-note">{{if .Degenerate}}<p class="notice">Not enough distinct days in the selection to fit a trend. The forecast is flat.</p>{{end}}</div>
<a id="forecast-download" class="button" href="{{.DownloadURL}}">Download Forecast CSV</a>
<div id="rows-content">
<p class="table-caption">Showing {{count (len .Rows)}} of {{count .TotalRows}} transactions</p>
<table class="modern-table">
<thead><tr><th>Invoice</th><th>Date</th><th>Product</th><th>Quantity</th><th>Unit Price</th><th>Sales</th><th>Customer</th><th>Country</th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td>{{.InvoiceNo}}</td>
<td>{{date .Date}}</td>
<td>{{.Description}}</td>
<td>{{.Quantity}}</td>
<td>{{money .UnitPrice}}</td>
<td><strong>{{money .Sales}}</strong></td>
<td>{{.CustomerID}}</td>
<td>{{.Country}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var errorTemplate = template.Must(template.New("error").Parse(
	`<div id="dashboard-error" class="alert" role="alert"><strong>{{.Message}}</strong>{{if .Details}} {{.Details}}{{end}}</div>`))

type SSEHandlers struct {
	dashboard
}

func NewSSEHandlers(store *services.DatasetStore, cfg config.DashboardConfig, metrics *observability.Metrics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		dashboard: dashboard{
			store:   store,
			cfg:     cfg,
			metrics: metrics,
			logger:  logger,
		},
	}
}

// dashboardSignals are the filter controls bound on the page. Missing signals
// fall back to the configured defaults.
type dashboardSignals struct {
	Countries []string `json:"countries"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Horizon   flexInt  `json:"horizon"`
}

func (s dashboardSignals) params(defaults services.Params) (services.Params, error) {
	params := defaults
	if s.Countries != nil {
		params.Countries = splitList(s.Countries)
	}

	var err error
	if params.Start, err = parseDate(s.Start, params.Start); err != nil {
		return services.Params{}, errors.ValidationWrap(err, "start must be a date formatted YYYY-MM-DD")
	}
	if params.End, err = parseDate(s.End, params.End); err != nil {
		return services.Params{}, errors.ValidationWrap(err, "end must be a date formatted YYYY-MM-DD")
	}
	if s.Horizon != 0 {
		params.Horizon = int(s.Horizon)
	}
	return params, nil
}

// flexInt accepts a JSON number or a numeric string; range inputs bind their
// value as text.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", raw, err)
	}
	*f = flexInt(n)
	return nil
}

type dashboardView struct {
	Summary     models.Summary
	Rows        []models.Transaction
	TotalRows   int
	Degenerate  bool
	DownloadURL string
}

// HandleDashboard recomputes the dashboard for the signals sent by the page
// and patches metrics, tables and chart data in one response.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ds, err := h.dataset(r)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}

	var signals dashboardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		errors.WriteError(w, r, h.logger, errors.BadRequestWrap(err, "Could not read dashboard signals"))
		return
	}

	sse := datastar.NewSSE(w, r)

	params, err := signals.params(h.defaults())
	if err == nil {
		var result *services.Result
		result, err = h.run(r, ds, params)
		if err == nil {
			err = h.patchResult(sse, ds, result)
		}
	}
	if err != nil {
		h.patchError(sse, r, err)
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) patchResult(sse *datastar.ServerSentEventGenerator, ds *services.Dataset, result *services.Result) error {
	rows := result.Rows
	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
	}

	var buf strings.Builder
	err := dashboardTemplate.Execute(&buf, dashboardView{
		Summary:     result.Summary,
		Rows:        rows,
		TotalRows:   len(result.Rows),
		Degenerate:  result.Forecast.Degenerate,
		DownloadURL: downloadURL(ds.ID, result.Params),
	})
	if err != nil {
		return errors.InternalWrap(err, "Could not render the dashboard")
	}

	signals, err := json.Marshal(map[string]any{
		"countries":    result.Params.Countries,
		"start":        formatDate(result.Params.Start),
		"end":          formatDate(result.Params.End),
		"horizon":      result.Params.Horizon,
		"dailyData":    dailySeries(result.Daily),
		"productsData": productSeries(result.TopProducts),
		"countryData":  countrySeries(result.Countries),
		"forecastData": forecastSeries(result.Forecast.Points),
	})
	if err != nil {
		return errors.InternalWrap(err, "Could not encode chart data")
	}

	if err := sse.PatchSignals(signals); err != nil {
		return err
	}
	return sse.PatchElements(buf.String())
}

func (h *SSEHandlers) patchError(sse *datastar.ServerSentEventGenerator, r *http.Request, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.InternalWrap(err, "An unexpected error occurred")
	}

	level := slog.LevelWarn
	if appErr.StatusCode >= 500 {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "dashboard update failed",
		"error_code", appErr.Code,
		"error", err,
		"request_id", observability.GetRequestID(r.Context()),
	)

	var buf strings.Builder
	if err := errorTemplate.Execute(&buf, appErr); err != nil {
		h.logger.Error("render dashboard error", "error", err)
		return
	}
	if err := sse.PatchElements(buf.String()); err != nil {
		h.logger.Warn("patch dashboard error", "error", err)
	}
}

func downloadURL(datasetID string, p services.Params) string {
	q := url.Values{}
	if len(p.Countries) == 0 {
		q.Set("country", "")
	}
	for _, c := range p.Countries {
		q.Add("country", c)
	}
	if !p.Start.IsZero() {
		q.Set("start", formatDate(p.Start))
	}
	if !p.End.IsZero() {
		q.Set("end", formatDate(p.End))
	}
	q.Set("horizon", strconv.Itoa(p.Horizon))
	return "/api/datasets/" + url.PathEscape(datasetID) + "/forecast.csv?" + q.Encode()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
