package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/betstream/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	replay := flag.Bool("replay", false, "replay archived stream files instead of connecting live")
	table := flag.Bool("table", false, "print full runner tables (default: compact 1-line per market)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("betstream starting",
		"config", *configPath,
		"replay", *replay,
		"markets", len(cfg.Stream.MarketIDs),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *replay {
		if err := runReplay(ctx, cfg, flag.Args(), *table); err != nil {
			slog.Error("replay failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := runLive(ctx, cfg, *table); err != nil {
		slog.Error("live session exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("betstream stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
