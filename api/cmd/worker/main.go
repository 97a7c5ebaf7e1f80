package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"collab-workspace-system/api/internal/app"
	"collab-workspace-system/api/internal/integration"
	"collab-workspace-system/api/internal/recurrence"
	"collab-workspace-system/shared/cachex"
	"collab-workspace-system/shared/config"
	"collab-workspace-system/shared/lockx"
	"collab-workspace-system/shared/logx"
	"collab-workspace-system/shared/metricsx"
	"collab-workspace-system/shared/observability"
)

const (
	taskOutboxScan     = "outbox.scan"
	taskOutboxDispatch = "outbox.dispatch"
	taskRecurrenceScan = "recurrence.scan"

	staleLockAge = 5 * time.Minute
)

type dispatchPayload struct {
	EventID string `json:"event_id"`
}

type worker struct {
	cfg       config.Config
	logger    logx.Logger
	rt        *app.Runtime
	relay     *integration.Relay
	scheduler *recurrence.Scheduler
}

func main() {
	cfg, problems := config.Load("workspace-worker", 8083)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)
	metricsx.Register()

	if cfg.DatabaseURL == "" {
		problems = append(problems, config.Problem{Field: "DATABASE_URL", Message: "DATABASE_URL is required"})
	}
	if cfg.AsynqEnabled && cfg.AsynqRedisAddr == "" {
		problems = append(problems, config.Problem{Field: "ASYNQ_REDIS_ADDR", Message: "ASYNQ_REDIS_ADDR is required when ASYNQ_ENABLED"})
	}
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

	schedOpts := []recurrence.Option{
		recurrence.WithInterval(cfg.RecurrenceScanInterval()),
		recurrence.WithLookahead(cfg.RecurrenceLookahead()),
	}
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
		ttl := time.Duration(cfg.RecurrenceLockTTLSec) * time.Second
		schedOpts = append(schedOpts, recurrence.WithLocker(lockx.NewMutex(cache.Client(), "lock:recurrence-scan", ttl)))
	}

	w := &worker{
		cfg:       cfg,
		logger:    logger,
		rt:        rt,
		relay:     integration.NewRelay(rt.Outbox, rt.Sink, cfg.OutboxMaxAttempts, logger).WithDeadLetterTopic(cfg.DeadLetterTopic),
		scheduler: recurrence.New(rt.Queries, rt.Commands, logger, schedOpts...),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.AsynqEnabled {
		w.runAsynq(ctx, sigCh)
	} else {
		w.runLoops(ctx, sigCh)
	}
	logger.Info(context.Background(), "worker_stop", "worker stopped")
}

// runAsynq schedules outbox scans and recurrence scans as asynq tasks so
// several worker replicas share the load.
func (w *worker) runAsynq(ctx context.Context, sigCh <-chan os.Signal) {
	cfg, logger := w.cfg, w.logger
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.AsynqRedisAddr,
		Password: cfg.AsynqRedisPass,
		DB:       cfg.AsynqRedisDB,
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.AsynqConcurrency,
		Queues: map[string]int{
			cfg.AsynqQueue: 1,
		},
	})
	defer server.Shutdown()
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	mux := asynq.NewServeMux()
	mux.HandleFunc(taskOutboxScan, func(ctx context.Context, t *asynq.Task) error {
		return w.scanOutbox(ctx, func(ctx context.Context, eventID uuid.UUID) error {
			payload, _ := json.Marshal(dispatchPayload{EventID: eventID.String()})
			_, err := client.EnqueueContext(ctx, asynq.NewTask(taskOutboxDispatch, payload, asynq.Queue(cfg.AsynqQueue)))
			return err
		})
	})
	mux.HandleFunc(taskOutboxDispatch, func(ctx context.Context, t *asynq.Task) error {
		var payload dispatchPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return err
		}
		eventID, err := uuid.Parse(strings.TrimSpace(payload.EventID))
		if err != nil {
			return err
		}
		return w.relay.Deliver(ctx, eventID)
	})
	mux.HandleFunc(taskRecurrenceScan, func(ctx context.Context, t *asynq.Task) error {
		_, err := w.scheduler.Tick(ctx)
		return err
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
	})
	defer scheduler.Shutdown()
	recurrenceEvery := cfg.RecurrenceScanInterval()
	periodic := []*asynq.Task{}
	if w.rt.Outbox != nil {
		periodic = append(periodic, asynq.NewTask(taskOutboxScan, nil, asynq.Queue(cfg.AsynqQueue)))
	}
	specs := map[string]string{
		taskOutboxScan:     "@every " + strconv.Itoa(cfg.OutboxScanSec) + "s",
		taskRecurrenceScan: "@every " + recurrenceEvery.String(),
	}
	periodic = append(periodic, asynq.NewTask(taskRecurrenceScan, nil,
		asynq.Queue(cfg.AsynqQueue),
		asynq.Unique(recurrenceEvery),
		asynq.MaxRetry(0),
	))
	for _, task := range periodic {
		if _, err := scheduler.Register(specs[task.Type()], task); err != nil {
			logger.Error(ctx, "scheduler_init_failed", "scheduler init failed",
				slog.String("task", task.Type()),
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}
	if err := scheduler.Start(); err != nil {
		logger.Error(ctx, "scheduler_start_failed", "scheduler start failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			info, err := inspector.GetQueueInfo(cfg.AsynqQueue)
			if err != nil {
				continue
			}
			metricsx.SetAsynqQueueDepth(cfg.AsynqQueue, info.Size)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "worker_start", "asynq worker started",
			slog.String("queue", cfg.AsynqQueue),
			slog.Int("concurrency", cfg.AsynqConcurrency),
			slog.Bool("outbox", w.rt.Outbox != nil),
		)
		errCh <- server.Run(mux)
	}()

	select {
	case sig := <-sigCh:
		logger.Info(ctx, "shutdown_signal", "received signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, asynq.ErrServerClosed) {
			logger.Error(ctx, "worker_failed", "worker failed",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}
}

// runLoops drives the scheduler and the outbox relay in-process.
func (w *worker) runLoops(ctx context.Context, sigCh <-chan os.Signal) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{}, 2)
	go func() {
		defer func() { done <- struct{}{} }()
		_ = w.scheduler.Run(ctx)
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		if w.rt.Outbox == nil {
			return
		}
		ticker := time.NewTicker(time.Duration(w.cfg.OutboxScanSec) * time.Second)
		defer ticker.Stop()
		for {
			if err := w.scanOutbox(ctx, w.deliverInline); err != nil && ctx.Err() == nil {
				w.logger.Error(ctx, "outbox_scan_failed", "outbox scan failed",
					slog.String("error_code", "INTERNAL_ERROR"),
					slog.String("error", err.Error()),
				)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	w.logger.Info(ctx, "worker_start", "worker started",
		slog.Duration("recurrence_interval", w.cfg.RecurrenceScanInterval()),
		slog.Bool("outbox", w.rt.Outbox != nil),
	)
	sig := <-sigCh
	w.logger.Info(ctx, "shutdown_signal", "received signal", slog.String("signal", sig.String()))
	cancel()
	<-done
	<-done
}

// scanOutbox releases abandoned claims, claims a batch and hands every row
// to dispatch. A row that cannot be handed off goes back to pending.
func (w *worker) scanOutbox(ctx context.Context, dispatch func(context.Context, uuid.UUID) error) error {
	if released, err := w.rt.Outbox.ReleaseStale(ctx, staleLockAge); err != nil {
		return err
	} else if released > 0 {
		w.logger.Warn(ctx, "outbox_released", "released stale outbox claims", slog.Int64("rows", released))
	}
	_, err := w.relay.Scan(ctx, w.cfg.ServiceName, w.cfg.OutboxBatchSize, dispatch)
	return err
}

// deliverInline publishes a claimed row in this process. Delivery failures
// are already recorded on the row by the relay.
func (w *worker) deliverInline(ctx context.Context, eventID uuid.UUID) error {
	if err := w.relay.Deliver(ctx, eventID); err != nil {
		w.logger.Warn(ctx, "outbox_retry", "outbox delivery will be retried",
			slog.String("event_id", eventID.String()),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
