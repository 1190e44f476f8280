package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"retail-dashboard/internal/config"
	"retail-dashboard/internal/observability"
	"retail-dashboard/internal/server"
	"retail-dashboard/internal/services"
)

const version = "1.0.0"

type app struct {
	store      *services.DatasetStore
	metrics    *observability.Metrics
	httpServer *http.Server
}

func newApp(cfg *config.Config, logger *slog.Logger) *app {
	store := services.NewDatasetStore(cfg.Dashboard.DatasetTTL)

	metrics := observability.NewMetrics()
	metrics.TrackDatasets(store.Len)

	srv := server.NewServer(cfg, store, metrics, logger)

	return &app{
		store:   store,
		metrics: metrics,
		httpServer: &http.Server{
			Addr:         cfg.Address(),
			Handler:      srv,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"addr", cfg.Address(),
		"default_country", cfg.Dashboard.DefaultCountry,
		"default_horizon", cfg.Dashboard.DefaultHorizon,
		"dataset_ttl", cfg.Dashboard.DatasetTTL,
	)

	a := newApp(cfg, logger)

	gracefulServer := server.NewGracefulServer(a.httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("releasing cached datasets", "datasets", a.store.Len())
		a.store.Flush()
		return nil
	})

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
