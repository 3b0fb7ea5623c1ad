package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/betstream/config"
	"github.com/alejandrodnm/betstream/internal/adapters/archive"
	"github.com/alejandrodnm/betstream/internal/adapters/exchange"
	"github.com/alejandrodnm/betstream/internal/adapters/notify"
	"github.com/alejandrodnm/betstream/internal/adapters/storage"
	"github.com/alejandrodnm/betstream/internal/feed"
)

// runReplay reconstruye los archives indicados y persiste el run en el
// sink SQLite. Los paths de la línea de comandos tienen prioridad sobre
// los del config.
func runReplay(ctx context.Context, cfg *config.Config, args []string, table bool) error {
	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.Replay.Paths
	}
	if len(patterns) == 0 {
		return fmt.Errorf("replay: no archive paths given (args or replay.paths)")
	}

	paths, err := archive.Expand(patterns)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	slog.Info("replay starting", "files", len(paths), "workers", cfg.Replay.Workers)

	replayer := feed.NewReplayer(archive.EachLine, exchange.Decode)

	started := time.Now().UTC()
	results := replayer.ReplayFiles(ctx, paths, cfg.Replay.Workers)
	run := feed.BuildRun(results, started)

	sink, err := storage.NewSQLiteSink(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("replay: open sink: %w", err)
	}
	defer sink.Close()

	if err := sink.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("replay: persist run: %w", err)
	}

	notify.NewConsole(table).PrintRun(run)

	slog.Info("replay complete",
		"run_id", run.RunID,
		"files", run.Files,
		"failed_files", run.FailedFiles,
		"markets", len(run.Markets),
		"duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
	)
	return nil
}
