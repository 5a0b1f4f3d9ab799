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

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"xtherma_bridge/internal/api"
	"xtherma_bridge/internal/collector"
	"xtherma_bridge/internal/config"
	"xtherma_bridge/internal/coordinator"
	"xtherma_bridge/internal/influx"
	"xtherma_bridge/internal/journal"
	"xtherma_bridge/internal/modbustcp"
	"xtherma_bridge/internal/mqtt"
	"xtherma_bridge/internal/registers"
	"xtherma_bridge/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting Xtherma bridge", "connection", cfg.Connection, "listen_addr", cfg.ListenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, regs := newTransport(cfg, logger)

	var opts []coordinator.Option
	var writes server.WriteLog
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, logger.With("component", "journal"))
		if err != nil {
			logger.Error("Failed to open journal", "error", err)
			os.Exit(1)
		}
		defer j.Close()
		opts = append(opts, coordinator.WithWriteHook(j.Record))
		writes = j
	}

	coord := coordinator.New(transport, regs, logger.With("component", "coordinator"), opts...)

	// The first poll is best effort; the loop retries on its own cadence.
	if err := transport.Connect(ctx); err != nil {
		logger.Warn("Initial connection failed", "error", err)
	}
	if err := coord.Refresh(ctx); err != nil {
		logger.Warn("Initial refresh failed", "error", err)
	}

	// Create and register Prometheus collector
	prometheus.MustRegister(collector.NewXthermaCollector(coord, cfg.API.Serial, logger.With("component", "collector")))

	if cfg.MQTT.Enabled {
		bridge, err := mqtt.Connect(cfg.MQTT, coord, logger.With("component", "mqtt"))
		if err != nil {
			logger.Error("MQTT unavailable", "error", err)
		} else {
			defer bridge.Close()
		}
	}

	if cfg.InfluxDB.Enabled {
		sink, err := influx.Connect(cfg.InfluxDB, coord, cfg.API.Serial, logger.With("component", "influx"))
		if err != nil {
			logger.Error("InfluxDB unavailable", "error", err)
		} else {
			defer sink.Close()
		}
	}

	// Setup HTTP server
	srv := server.New(coord, writes, promhttp.Handler(), logger.With("component", "http"))
	srv.Start(ctx)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- coord.Run(ctx)
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	<-runErr
	if err := coord.Close(); err != nil {
		logger.Error("Disconnect error", "error", err)
	}

	logger.Info("Bridge stopped")
}

// newTransport builds the transport and matching register map for the
// configured connection type.
func newTransport(cfg *config.Config, logger *slog.Logger) (coordinator.Transport, *registers.Map) {
	if cfg.Connection == config.ConnectionREST {
		client := api.NewAPIClient(cfg.API.URL, cfg.API.Key, cfg.API.Serial, cfg.RequestTimeout, logger.With("component", "api"))
		return client, registers.Rest()
	}

	client := modbustcp.NewClient(modbustcp.Config{
		Host:           cfg.Modbus.Host,
		Port:           cfg.Modbus.Port,
		UnitID:         byte(cfg.Modbus.UnitID),
		Timeout:        cfg.Modbus.Timeout,
		UpdateInterval: cfg.Modbus.PollInterval,
	}, registers.Modbus(), logger.With("component", "modbus"))
	return client, registers.Modbus()
}

// setupLogger creates a structured logger based on configuration.
func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
