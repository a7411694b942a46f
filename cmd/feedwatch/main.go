// feedwatch connects to a push feed endpoint and streams decoded
// messages to the console.
// Usage: go run ./cmd/feedwatch --config configs/feedwatch.example.yaml
//
// The feed token is usually supplied via an environment variable
// referenced from the config file, e.g. token: ${FEED_TOKEN}.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/pushline/pushline/internal/config"
	"github.com/pushline/pushline/internal/supervisor"
	"github.com/pushline/pushline/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feedwatch.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	hooks := supervisor.Hooks{
		OnOpen: func() {
			logger.Info("feed open", "endpoint", cfg.Feed.Endpoint)
		},
		OnMessage: func(decoded any, raw []byte) {
			printMessage(decoded, raw, *verbose)
		},
		OnError: func(err error) {
			logger.Warn("feed error", "error", err)
		},
		OnClose: func(code int, reason string) {
			logger.Info("feed closed", "code", code, "reason", reason)
		},
		OnDown: func(err error) {
			logger.Error("feed down for good", "error", err)
		},
	}

	sup, err := supervisor.New(cfg.Supervisor(), hooks, logger)
	if err != nil {
		logger.Error("failed to create supervisor", "error", err)
		os.Exit(1)
	}

	logger.Info("connecting", "endpoint", cfg.Feed.Endpoint, "streaming", cfg.Feed.Streaming)
	if err := sup.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	logger.Info("streaming started - press Ctrl+C to stop")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return sup.Close(websocket.CloseNormalClosure, "shutting down")
	})
	g.Go(func() error {
		<-sup.Done()
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func printMessage(decoded any, raw []byte, verbose bool) {
	if decoded == nil {
		fmt.Printf("[RAW] %s\n", raw)
		return
	}
	if verbose {
		data, _ := json.MarshalIndent(decoded, "", "  ")
		fmt.Printf("[MSG] %s\n", data)
		return
	}
	fmt.Printf("[MSG] %s\n", raw)
}

func logLevel(level string) slog.Level {
	switch level {
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
