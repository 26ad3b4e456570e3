package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/tariff-engine/internal/bootstrap"
	"github.com/kirillkom/tariff-engine/internal/config"
	"github.com/kirillkom/tariff-engine/internal/observability/logging"
	"github.com/kirillkom/tariff-engine/internal/observability/metrics"
)

const serviceName = "tariff-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, serviceName, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Observers{Resilience: workerMetrics})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "queue_group", cfg.NATSQueueGroup)
	err = app.Queue.SubscribeImportRequested(ctx, func(handlerCtx context.Context, jobID string) error {
		if job, err := app.Imports.GetByID(handlerCtx, jobID); err == nil {
			workerMetrics.ObserveQueueLag(time.Since(job.CreatedAt))
		}

		processCtx, cancel := context.WithTimeout(handlerCtx, cfg.ImportProcessTimeout)
		defer cancel()

		started := time.Now()
		workerMetrics.StartImport()
		err := app.ProcessUC.ProcessByID(processCtx, jobID)
		workerMetrics.FinishImport(time.Since(started), err)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
