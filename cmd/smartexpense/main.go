package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"smartexpense/internal/backend"
	"smartexpense/internal/cli"
	apphttp "smartexpense/internal/http"
	applog "smartexpense/internal/log"
	"smartexpense/internal/metrics"
	"smartexpense/internal/tracker"
)

func main() {
	cli.LoadEnvFile()

	cfg, logger, err := cli.LoadAndValidateConfig()
	if err != nil {
		logger.Error("Invalid configuration", applog.FieldError, err)
		os.Exit(1)
	}

	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger, m).
		CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	expenses := tracker.New(result.Backend, tracker.WithLogger(logger.WithComponent(applog.ComponentTracker)))
	startupCtx, cancel := context.WithTimeout(context.Background(), cfg.BackendTimeout)
	if err := expenses.Refetch(startupCtx); err != nil {
		// The views show the error and retry on the next request.
		logger.Warn("Initial expense fetch failed", applog.FieldError, err)
	}
	cancel()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Tracker:            expenses,
		Backend:            result,
		Metrics:            m,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		return errors.Join(srv.Shutdown(ctx), result.Close())
	})

	logger.Info("Starting smartexpense server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"remote", result.Remote)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		_ = result.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
