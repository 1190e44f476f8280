package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"retail-dashboard/internal/config"
	"retail-dashboard/internal/handlers"
	"retail-dashboard/internal/middleware"
	"retail-dashboard/internal/observability"
	"retail-dashboard/internal/services"
	"retail-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	pageTitle     = "Smart Business Dashboard"
)

type Server struct {
	router      chi.Router
	cfg         *config.Config
	logger      *slog.Logger
	metrics     *observability.Metrics
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

func NewServer(cfg *config.Config, store *services.DatasetStore, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		apiHandlers: handlers.NewAPIHandlers(store, cfg.Dashboard, metrics, logger.With("component", "api")),
		sseHandlers: handlers.NewSSEHandlers(store, cfg.Dashboard, metrics, logger.With("component", "sse")),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	rateLimiter := middleware.NewRateLimiter(s.cfg.Security)

	s.router.Use(
		middleware.Recovery(s.logger),
		chimiddleware.CleanPath,
		middleware.TrustedProxy(s.cfg.Security),
		middleware.RequestID(),
		middleware.Logger(s.logger),
		middleware.Tracing(s.logger),
		middleware.Metrics(s.metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(s.cfg.Security),
		middleware.RateLimit(rateLimiter, s.logger),
	)
}

func (s *Server) setupRoutes() {
	// Dashboard routes
	s.router.Get("/", s.handleDashboard)
	s.router.Get("/health", s.apiHandlers.HandleHealth)
	s.router.Get("/admin/stats", s.apiHandlers.HandleStats)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// REST API endpoints
	s.router.Route("/api/datasets", func(r chi.Router) {
		r.Post("/", s.apiHandlers.HandleUpload)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.apiHandlers.HandleDataset)
			r.Delete("/", s.apiHandlers.HandleDeleteDataset)
			r.Get("/dashboard", s.apiHandlers.HandleDashboard)
			r.Get("/rows", s.apiHandlers.HandleRows)
			r.Get("/forecast.csv", s.apiHandlers.HandleForecastCSV)
		})
	})

	// Datastar SSE endpoints
	s.router.Get("/sse/datasets/{id}/dashboard", s.sseHandlers.HandleDashboard)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	page := templates.Page{
		Title:          pageTitle,
		DefaultCountry: s.cfg.Dashboard.DefaultCountry,
		DefaultHorizon: s.cfg.Dashboard.DefaultHorizon,
		MinHorizon:     services.MinForecastHorizon,
		MaxHorizon:     services.MaxForecastHorizon,
		UploadPrompt:   "Upload your Online Retail.xlsx file to get started.",
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := templates.Dashboard(page).Render(ctx, w); err != nil {
		s.logger.Error("render dashboard page", "error", err, "request_id", observability.GetRequestID(r.Context()))
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
