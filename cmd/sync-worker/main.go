package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"smartexpense/internal/amqp"
	"smartexpense/internal/apiclient"
	"smartexpense/internal/cli"
	applog "smartexpense/internal/log"
	"smartexpense/internal/metrics"
	"smartexpense/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, logger, err := cli.LoadAndValidateConfig()
	if err != nil {
		logger.Error("Invalid configuration", applog.FieldError, err)
		os.Exit(1)
	}
	logger = logger.WithComponent(applog.ComponentWorker)
	logger.Info("Starting sync-worker")

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open local store", applog.FieldError, err)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	m := metrics.New()
	remote := apiclient.New(cfg.BackendURL, apiclient.WithTimeout(cfg.BackendTimeout))
	syncWorker := worker.NewSyncWorker(repo, remote, m, cfg.SyncBatchSize)

	// Metrics only; the worker has no other HTTP surface.
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		// Pending rows are retried by the periodic sweep.
		logger.Error("Failed startup sync check", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.Consume(gctx, syncWorker.HandleChange)
	})
	g.Go(func() error {
		return syncWorker.Run(gctx, cfg.SyncInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info("Serving worker metrics", "port", cfg.Port)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Sync worker stopped", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
