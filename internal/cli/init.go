// Package cli provides common process initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/smartexpense and cmd/sync-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"smartexpense/internal/config"
	applog "smartexpense/internal/log"
	"smartexpense/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it. It also installs the process logger configured by
// LOG_LEVEL and LOG_FORMAT, which is returned even when validation fails
// so that the failure can be reported.
func LoadAndValidateConfig() (*config.Config, *applog.Logger, error) {
	cfg := config.Load()
	logger := applog.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return nil, logger, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, logger, nil
}

// InitSQLite opens the SQLite repository at dbPath and applies migrations.
func InitSQLite(logger *applog.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository at %s: %w", dbPath, err)
	}
	logger.Info("SQLite repository ready", applog.FieldPath, dbPath)
	return repo, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// It returns a context that is cancelled on SIGINT or SIGTERM and a channel
// closed once cleanup has finished or timeout has elapsed.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context) error) (context.Context, <-chan struct{}) {
	return shutdownOn(logger, timeout, cleanup, syscall.SIGINT, syscall.SIGTERM)
}

func shutdownOn(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context) error, signals ...os.Signal) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, signals...)

	go func() {
		defer close(done)
		sig := <-sigChan
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup == nil {
			return
		}
		finished := make(chan error, 1)
		go func() { finished <- cleanup(shutdownCtx) }()

		select {
		case err := <-finished:
			if err != nil {
				logger.Error("Shutdown cleanup failed", applog.FieldError, err)
				return
			}
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached", "timeout", timeout)
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
