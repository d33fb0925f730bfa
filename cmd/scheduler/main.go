// Command scheduler rebuilds the indicator data on a cron schedule and serves
// the site, the dashboard API, and health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	httpadapter "github.com/couchcryptid/indicator-grid-etl/internal/adapter/http"
	"github.com/couchcryptid/indicator-grid-etl/internal/app"
	"github.com/couchcryptid/indicator-grid-etl/internal/config"
	"github.com/couchcryptid/indicator-grid-etl/internal/dashboard"
	"github.com/couchcryptid/indicator-grid-etl/internal/observability"
	"github.com/couchcryptid/indicator-grid-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	build, err := app.NewBuild(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to set up build", "error", err)
		os.Exit(1)
	}

	favs, err := dashboard.LoadFavorites(cfg.FavoritesPath)
	if err != nil {
		logger.Warn("ignoring unreadable favorites", "path", cfg.FavoritesPath, "error", err)
	}

	dash := httpadapter.NewDashboard(build.Store, favs, httpadapter.DashboardOptions{
		Fallback:      build.Catalog.Metrics,
		GeoPath:       cfg.GeoPath,
		FavoritesPath: cfg.FavoritesPath,
	}, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, &readiness{build: build}, dash, cfg.SiteDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runBuild := func() {
		buildCtx, cancel := context.WithTimeout(ctx, cfg.BuildTimeout)
		defer cancel()
		if err := build.Builder.Run(buildCtx); errors.Is(err, pipeline.ErrBuildInProgress) {
			logger.Warn("skipping build, previous build still running")
		}
	}

	cronLog := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(cfg.BuildSchedule, runBuild); err != nil {
		logger.Error("invalid BUILD_SCHEDULE", "schedule", cfg.BuildSchedule, "error", err)
		os.Exit(1)
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	c.Start()
	logger.Info("scheduler started", "schedule", cfg.BuildSchedule, "build_on_start", cfg.BuildOnStart)
	var startup sync.WaitGroup
	if cfg.BuildOnStart {
		startup.Add(1)
		go func() {
			defer startup.Done()
			runBuild()
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	// Running builds see the cancelled root context; wait for them to unwind.
	if !waitForBuilds(shutdownCtx, c, &startup) {
		logger.Warn("build did not stop before shutdown timeout")
	}

	if err := build.Close(); err != nil {
		logger.Error("kafka publisher close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// waitForBuilds stops the scheduler and blocks until its running jobs and the
// startup build have returned. It reports false if ctx expires first.
func waitForBuilds(ctx context.Context, c *cron.Cron, startup *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		startup.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// readiness reports ready once a build has succeeded in this process, or when
// a previous run left a manifest on disk.
type readiness struct {
	build *app.Build
}

func (r *readiness) CheckReadiness(ctx context.Context) error {
	if err := r.build.Builder.CheckReadiness(ctx); err == nil {
		return nil
	}
	if _, err := r.build.Store.ReadManifest(); err != nil {
		return fmt.Errorf("no build output yet: %w", err)
	}
	return nil
}

// cronLogger routes cron's logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
