// Command rebuild drops the read views and replays the event log into them.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"collab-workspace-system/api/internal/app"
	"collab-workspace-system/shared/config"
	"collab-workspace-system/shared/logx"
)

func main() {
	cfg, problems := config.Load("workspace-rebuild", 8084)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		problems = append(problems, config.Problem{Field: "DATABASE_URL", Message: "DATABASE_URL is required"})
	}
	if len(problems) > 0 {
		logger.Error(context.Background(), "config_invalid", "invalid config",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.Any("problems", problems),
		)
		os.Exit(1)
	}

	ctx := context.Background()
	rt, err := app.Build(ctx, cfg, logger, app.Options{WithoutPublisher: true})
	if err != nil {
		logger.Error(ctx, "runtime_init_failed", "runtime init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer rt.Close()

	start := time.Now()
	n, err := rt.Projector.Rebuild(ctx, cfg.ProjectionBatchSize)
	if err != nil {
		logger.Error(ctx, "rebuild_failed", "view rebuild failed",
			slog.Int("events", n),
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info(ctx, "rebuild_done", "views rebuilt",
		slog.Int("events", n),
		slog.Duration("took", time.Since(start)),
	)
}
