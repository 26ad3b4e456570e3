package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/tariff-engine/internal/adapters/mcp"
	"github.com/kirillkom/tariff-engine/internal/bootstrap"
	"github.com/kirillkom/tariff-engine/internal/config"
	"github.com/kirillkom/tariff-engine/internal/observability/logging"
)

const serviceName = "tariff-mcp"

func main() {
	cfg := config.Load()
	// stdout carries the stdio protocol.
	slog.SetDefault(logging.New(os.Stderr, serviceName, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Observers{})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(app.QueryUC, cfg.SearchDefaultLimit)

	switch cfg.MCPTransport {
	case "sse":
		addr := ":" + cfg.MCPPort
		slog.Info("mcp_sse_listening", "addr", addr)
		if err := srv.ServeSSE(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp_server_failed", "error", err)
			os.Exit(1)
		}
	case "stdio":
		if err := srv.ServeStdio(); err != nil {
			slog.Error("mcp_server_failed", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("unknown_mcp_transport", "transport", cfg.MCPTransport)
		os.Exit(2)
	}
}
