package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	Endpoint    string
	Subscribe   string
	LogLevel    string
	LogFormat   string
	MetricsPort int
	Retry       bool
	ShowVersion bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.Endpoint, "endpoint",
		getEnv("MESOS_STREAM_ENDPOINT", ""),
		"Master API endpoint, e.g. http://master:5050/api/v1/scheduler (env: MESOS_STREAM_ENDPOINT)")

	flag.StringVar(&cfg.Subscribe, "subscribe",
		getEnv("MESOS_STREAM_SUBSCRIBE", `{"type":"SUBSCRIBE"}`),
		"JSON message posted to open the stream (env: MESOS_STREAM_SUBSCRIBE)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("MESOS_STREAM_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: MESOS_STREAM_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("MESOS_STREAM_LOG_FORMAT", "text"),
		"Log format: json, text (env: MESOS_STREAM_LOG_FORMAT)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("MESOS_STREAM_METRICS_PORT", 0),
		"Prometheus metrics port, 0 to disable (env: MESOS_STREAM_METRICS_PORT)")

	flag.BoolVar(&cfg.Retry, "retry",
		getEnvBool("MESOS_STREAM_RETRY", true),
		"Retry calls on connection failure (env: MESOS_STREAM_RETRY)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")

	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion {
		return nil
	}

	if cfg.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - tail a Mesos V1 event stream

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Tail a local master's scheduler stream
  %s --endpoint=http://localhost:5050/api/v1/scheduler

  # Subscribe with a framework info payload
  %s --endpoint=http://master:5050/api/v1/scheduler \
     --subscribe='{"type":"SUBSCRIBE","subscribe":{"framework_info":{"user":"root","name":"tail"}}}'

  # Expose client metrics
  %s --endpoint=http://master:5050/api/v1/scheduler --metrics-port=9090

Version: %s
`, os.Args[0], os.Args[0], os.Args[0], Version)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
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

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
