// Package main implements the entry point for the streambridge
// application, a high-throughput pub-sub bridge between message
// brokers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/streambridge/broker"
	"github.com/c360/streambridge/brokerregistry"
	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/engine"
	"github.com/c360/streambridge/metric"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "streambridge"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "mode", cfg.Mode)
		return nil
	}

	// Flag override takes precedence over the config file
	if cliCfg.ShutdownTimeout > 0 {
		cfg.ShutdownTimeoutSeconds = cliCfg.ShutdownTimeout.Seconds()
	}

	// Metrics registry and optional HTTP endpoint
	metricsRegistry := metric.NewMetricsRegistry()
	stopMetrics := startMetricsServer(cliCfg.MetricsPort, metricsRegistry)
	defer stopMetrics()

	// Adapter registry
	registry := broker.NewRegistry()
	if err := brokerregistry.Register(registry); err != nil {
		return fmt.Errorf("register broker adapters: %w", err)
	}
	slog.Info("broker adapters registered",
		"sources", registry.SourceTypes(),
		"publishers", registry.PublisherTypes())

	deps := broker.Dependencies{
		Logger:  logger,
		Metrics: metricsRegistry,
	}

	runner, err := engine.New(cfg, registry, deps)
	if err != nil {
		return fmt.Errorf("build flow: %w", err)
	}

	return runWithSignalHandling(runner)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting streambridge",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// initializeConfiguration loads and validates configuration
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	cfg, err := config.NewLoader().LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// startMetricsServer exposes the Prometheus endpoint when port > 0.
// Returns a shutdown function.
func startMetricsServer(port int, registry *metric.MetricsRegistry) func() {
	if port <= 0 {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics endpoint listening", "port", port, "path", "/metrics")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

// runWithSignalHandling runs the flow until SIGINT/SIGTERM
func runWithSignalHandling(runner *engine.Runner) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := runner.Run(signalCtx); err != nil {
		return err
	}

	slog.Info("streambridge shutdown complete")
	return nil
}
