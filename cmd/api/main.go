package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/kirillkom/tariff-engine/internal/adapters/http"
	"github.com/kirillkom/tariff-engine/internal/bootstrap"
	"github.com/kirillkom/tariff-engine/internal/config"
	"github.com/kirillkom/tariff-engine/internal/observability/logging"
	"github.com/kirillkom/tariff-engine/internal/observability/metrics"
)

const serviceName = "tariff-api"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, serviceName, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Observers{
		Resilience: httpMetrics,
		Cache:      httpMetrics,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.QueryUC, app.Rules, app.ImportUC, app.Imports).
		WithMetrics(httpMetrics).
		Handler()

	apiServer := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", apiServer.Addr)
	if err != nil {
		slog.Error("api_listen_failed", "addr", apiServer.Addr, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	servers := []*http.Server{apiServer}
	var metricsServer *http.Server
	if cfg.MetricsPort != "" && cfg.MetricsPort != cfg.APIPort {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", httpMetrics.Handler())
		metricsServer = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		servers = append(servers, metricsServer)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("api_listening", "addr", apiServer.Addr, "max_connections", cfg.APIMaxConnections)
		if err := apiServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			slog.Info("metrics_listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("server_shutdown_failed", "addr", srv.Addr, "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("api_server_failed", "error", err)
		os.Exit(1)
	}
}
