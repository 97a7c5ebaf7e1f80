package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"collab-workspace-system/api/internal/app"
	"collab-workspace-system/api/internal/inbound"
	"collab-workspace-system/shared/cachex"
	"collab-workspace-system/shared/config"
	"collab-workspace-system/shared/events"
	"collab-workspace-system/shared/logx"
	"collab-workspace-system/shared/metricsx"
	"collab-workspace-system/shared/mqx"
	"collab-workspace-system/shared/observability"
)

func main() {
	cfg, problems := config.Load("workspace-consumer", 8082)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)
	metricsx.Register()

	problems = append(problems, requiredProblems(cfg)...)
	if len(problems) > 0 {
		logger.Error(context.Background(), "config_invalid", "invalid config",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.Any("problems", problems),
		)
		os.Exit(1)
	}

	if cfg.OtelEnabled {
		if shutdown, err := observability.InitTracer(context.Background(), observability.TracerConfigFrom(cfg)); err == nil {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	rt, err := app.Build(context.Background(), cfg, logger, app.Options{})
	if err != nil {
		logger.Error(context.Background(), "runtime_init_failed", "runtime init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer rt.Close()

	reader, err := mqx.NewGroupConsumer(cfg, events.InboundTopics(), cfg.KafkaGroupID)
	if err != nil {
		logger.Error(context.Background(), "kafka_init_failed", "kafka reader init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer reader.Close()

	var inbox inbound.Inbox = inbound.NewMemoryInbox(cfg.InboxTTL())
	if cfg.RedisAddr != "" {
		cache, err := cachex.New(cfg)
		if err != nil {
			logger.Error(context.Background(), "redis_init_failed", "redis init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		defer cache.Close()
		inbox = inbound.NewRedisInbox(cache, cfg.InboxTTL())
	}

	consumer := inbound.NewConsumer(reader, inbound.NewHandler(rt.Commands, logger), logger,
		inbound.WithInbox(inbox),
		inbound.WithDeadLetter(rt.Sink, cfg.DeadLetterTopic),
		inbound.WithGroup(cfg.KafkaGroupID),
		inbound.WithTimeout(cfg.ConsumeTimeout()),
		inbound.WithRetries(cfg.ConsumeRetryMax),
	)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info(context.Background(), "shutdown_signal", "received signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info(ctx, "consumer_start", "inbound consumer started",
		slog.Any("topics", events.InboundTopics()),
		slog.String("group", cfg.KafkaGroupID),
	)
	if err := consumer.Run(ctx); err != nil {
		logger.Error(context.Background(), "consumer_failed", "consumer failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
	}
	logger.Info(context.Background(), "consumer_stop", "inbound consumer stopped")
}

// requiredProblems lists settings the consumer cannot run without. Inbound
// commands must reach the shared event store, so a private in-memory store
// is never acceptable here.
func requiredProblems(cfg config.Config) []config.Problem {
	var problems []config.Problem
	if cfg.DatabaseURL == "" {
		problems = append(problems, config.Problem{Field: "DATABASE_URL", Message: "DATABASE_URL is required"})
	}
	if len(cfg.KafkaBrokers) == 0 {
		problems = append(problems, config.Problem{Field: "KAFKA_BROKERS", Message: "KAFKA_BROKERS is required"})
	}
	if cfg.KafkaGroupID == "" {
		problems = append(problems, config.Problem{Field: "KAFKA_CONSUMER_GROUP", Message: "KAFKA_CONSUMER_GROUP is required"})
	}
	return problems
}
