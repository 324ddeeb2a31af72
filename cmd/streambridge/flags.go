package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	MetricsPort     int
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	// Optional .env bootstrap; a missing file is fine
	_ = godotenv.Load()

	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("STREAMBRIDGE_CONFIG", "configs/bridge.yaml"),
		"Path to configuration file (env: STREAMBRIDGE_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("STREAMBRIDGE_CONFIG", "configs/bridge.yaml"),
		"Path to configuration file (env: STREAMBRIDGE_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("STREAMBRIDGE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: STREAMBRIDGE_LOG_LEVEL)")

	flag.StringVar(&cfg.LogLevel, "l",
		getEnv("STREAMBRIDGE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: STREAMBRIDGE_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("STREAMBRIDGE_LOG_FORMAT", "json"),
		"Log format: json, text (env: STREAMBRIDGE_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("STREAMBRIDGE_SHUTDOWN_TIMEOUT", 0),
		"Graceful shutdown timeout, overrides the config file when set (env: STREAMBRIDGE_SHUTDOWN_TIMEOUT)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("STREAMBRIDGE_METRICS_PORT", 0),
		"Prometheus metrics port, 0 to disable (env: STREAMBRIDGE_METRICS_PORT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	// Custom usage
	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	// Validate config file exists
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	// Validate log format
	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	// Validate metrics port
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Pub-Sub Bridge

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with a config file
  %s -c /etc/streambridge/bridge.yaml

  # Run with debug logging and the metrics endpoint
  %s -c bridge.yaml --log-level=debug --metrics-port=9090

  # Run with environment variables
  export STREAMBRIDGE_CONFIG=/etc/streambridge/bridge.yaml
  export STREAMBRIDGE_LOG_LEVEL=debug
  %s

  # Validate configuration only
  %s -c bridge.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
