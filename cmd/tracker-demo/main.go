// Command tracker-demo runs a standalone eventtracker.Client wired from
// environment variables, exposing its OpenTelemetry-bridged Prometheus
// metrics over HTTP and tracking a handful of synthetic events so the
// pipeline (backlog, batching, retry, metrics) can be observed end to end.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"

	eventtracker "github.com/flowmetric/eventtracker"
	"github.com/flowmetric/eventtracker/internal/envconfig"
	"github.com/flowmetric/eventtracker/internal/metrics"
)

// demoConfig holds this command's own environment variables, separate from
// the Tracker's own envconfig.TrackerConfig section.
type demoConfig struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
	Stream      string `env:"DEMO_STREAM" envDefault:"demo-events"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var demoCfg demoConfig
	if err := env.Parse(&demoCfg); err != nil {
		return fmt.Errorf("failed to load demo config: %w", err)
	}

	logger := setupLogger(demoCfg.LogLevel)
	slog.SetDefault(logger)

	trackerCfg, err := envconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to load tracker config: %w", err)
	}
	trackerCfg.Logger = logger
	trackerCfg.Callback = func(unixTime float64, status int, errMsg string, data any, stream string) {
		logger.Error("delivery failed", "component", "tracker-demo",
			"status", status, "error", errMsg, "stream", stream)
	}

	metricsModule, err := metrics.NewModule()
	if err != nil {
		return fmt.Errorf("failed to create metrics module: %w", err)
	}
	trackerCfg.Meter = metricsModule.Meter()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsModule.Handler())
	metricsServer := &http.Server{Addr: demoCfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	client, err := eventtracker.New(trackerCfg)
	if err != nil {
		return fmt.Errorf("failed to create tracker client: %w", err)
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("tracker-demo started", "stream", demoCfg.Stream, "metrics_addr", demoCfg.MetricsAddr)

	count := 0
	for {
		select {
		case <-ticker.C:
			count++
			client.Track(demoCfg.Stream, map[string]any{
				"seq":        count,
				"emitted_at": time.Now().UTC().Format(time.RFC3339),
			}, "")
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			client.Stop()
			_ = metricsServer.Close()
			_ = metricsModule.Shutdown(context.Background())
			logger.Info("tracker-demo stopped")
			return nil
		}
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}
