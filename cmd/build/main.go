// Command build runs one complete indicator build: it fetches every catalog
// metric, writes latest/<id>.json per metric and meta.json, and exits non-zero
// on any failure.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/indicator-grid-etl/internal/app"
	"github.com/couchcryptid/indicator-grid-etl/internal/config"
	"github.com/couchcryptid/indicator-grid-etl/internal/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	build, err := app.NewBuild(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to set up build", "error", err)
		return 1
	}
	defer func() {
		if err := build.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.BuildTimeout)
	defer cancel()

	buildErr := build.Builder.Run(ctx)

	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, prometheus.DefaultGatherer); err != nil {
			logger.Error("failed to write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}

	if buildErr != nil {
		return 1
	}
	return 0
}
