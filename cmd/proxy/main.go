// Command proxy runs the Messages-to-GenerateContent reverse proxy: load
// config, wire the dependency graph, start the chi server, and wait for
// SIGINT/SIGTERM to drain and shut down gracefully.
//
// The bootstrap shape — background context, config load with a fail-fast
// exit on error, server started in a goroutine, signal.Notify blocking the
// main goroutine, bounded Shutdown on signal — follows the teacher pack's
// cmd/server/main.go (vellankikoti-kubilitics-os-emergent/kubilitics-backend).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openbridge/messages-gemini-proxy/internal/config"
	"github.com/openbridge/messages-gemini-proxy/internal/convstate"
	"github.com/openbridge/messages-gemini-proxy/internal/server"
	"github.com/openbridge/messages-gemini-proxy/internal/telemetry"
	"github.com/openbridge/messages-gemini-proxy/internal/toolschema"
	"github.com/openbridge/messages-gemini-proxy/internal/translate"
	"github.com/openbridge/messages-gemini-proxy/internal/upstreamhttp"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const shutdownGrace = 30 * time.Second

// ttlSweepInterval is the background cadence for expiring idle tool-call
// entries (§4.2 "a low-frequency background tick").
const ttlSweepInterval = 5 * time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	store := convstate.New(cfg.ToolCallTTL)
	schema := toolschema.New(0)
	translator := translate.New(store, schema, logger)
	upstream := upstreamhttp.New(upstreamhttp.Config{
		ConnectTimeout: cfg.ConnectTimeout,
		StreamTimeout:  cfg.StreamTimeout,
	})

	telemetrySettings, shutdownTelemetry := setupTelemetry(cfg, logger)
	defer shutdownTelemetry()

	srv := server.New(cfg, translator, store, upstream, telemetrySettings, logger)

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: srv.Router(),
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runTTLSweep(sweepCtx, store)
	defer stopSweep()

	go func() {
		logger.Info("proxy listening", "addr", cfg.BindAddr, "upstream_host", cfg.UpstreamHost)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server exited unexpectedly", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down, draining in-flight requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shut down", "error", err)
	}
	logger.Info("shutdown complete")
}

// runTTLSweep periodically expires idle tool-call registrations until ctx
// is canceled.
func runTTLSweep(ctx context.Context, store *convstate.Store) {
	ticker := time.NewTicker(ttlSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			store.ExpireIdle(now)
		}
	}
}

// setupTelemetry builds the OTel tracer provider and OTLP exporter when
// telemetry is enabled, matching the teacher's opt-in
// telemetry.Settings.IsEnabled gate; when disabled it returns settings that
// make telemetry.GetTracer hand back a no-op tracer, and a no-op shutdown.
func setupTelemetry(cfg *config.Config, logger *slog.Logger) (*telemetry.Settings, func()) {
	if !cfg.TelemetryEnabled {
		return &telemetry.Settings{IsEnabled: false}, func() {}
	}

	exporter, err := otlptracehttp.New(context.Background())
	if err != nil {
		logger.Warn("failed to build OTLP exporter, disabling telemetry", "error", err)
		return &telemetry.Settings{IsEnabled: false}, func() {}
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	tracer := provider.Tracer(telemetry.TracerName)

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("telemetry provider shutdown failed", "error", err)
		}
	}
	return &telemetry.Settings{IsEnabled: true, Tracer: tracer}, shutdown
}
