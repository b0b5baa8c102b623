// Package main implements stream-tail, a debugging tool that
// subscribes to a Mesos V1 streaming endpoint and prints every event
// as one JSON line on stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/hs-jenkins-bot/mesos-stream/client"
	"github.com/hs-jenkins-bot/mesos-stream/codec"
	"github.com/hs-jenkins-bot/mesos-stream/metric"
	"github.com/hs-jenkins-bot/mesos-stream/useragent"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "stream-tail"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("stream-tail failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()

	if cfg.ShowVersion {
		fmt.Printf("%s %s (%s)\n", appName, Version, runtime.Version())
		return nil
	}

	if err := validateFlags(cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		printDetailedHelp()
		return err
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	registry := metric.NewRegistry()

	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.Handler())
		go func() {
			addr := fmt.Sprintf(":%d", cfg.MetricsPort)
			logger.Info("metrics listening", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	out := json.NewEncoder(os.Stdout)

	builder := client.New[json.RawMessage, json.RawMessage]().
		Endpoint(cfg.Endpoint).
		SendCodec(codec.JSON[json.RawMessage]()).
		ReceiveCodec(codec.JSON[json.RawMessage]()).
		Subscribe(json.RawMessage(cfg.Subscribe)).
		ReceiveBackpressure(client.UnboundedBuffer()).
		OnEvent(func(event json.RawMessage) (*client.SinkOperation[json.RawMessage], error) {
			return nil, out.Encode(event)
		}).
		UserAgentEntry(useragent.Entry{Name: appName, Version: Version}).
		Logger(logger).
		Metrics(registry)

	if cfg.Retry {
		builder = builder.OnSendErrorRetry()
	}

	c, err := builder.Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("subscribing", "endpoint", cfg.Endpoint)
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("stream closed", "state", c.State().String())
	return nil
}
