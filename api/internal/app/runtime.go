package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"collab-workspace-system/api/internal/analytics"
	"collab-workspace-system/api/internal/dispatch"
	"collab-workspace-system/api/internal/eventstore"
	"collab-workspace-system/api/internal/integration"
	"collab-workspace-system/api/internal/projection"
	"collab-workspace-system/api/internal/repos"
	"collab-workspace-system/shared/amqpx"
	"collab-workspace-system/shared/config"
	"collab-workspace-system/shared/dbx"
	"collab-workspace-system/shared/influxx"
	"collab-workspace-system/shared/logx"
	"collab-workspace-system/shared/mqx"
)

// Runtime is the assembled command and query side of one process.
type Runtime struct {
	Config     config.Config
	Logger     logx.Logger
	Pool       *pgxpool.Pool
	Events     eventstore.Store
	Views      projection.Store
	Projector  *projection.Projector
	Queries    *projection.Queries
	Bus        *dispatch.Bus
	Dispatcher *dispatch.Dispatcher
	Commands   *Commands
	Mapper     integration.Mapper
	// Outbox is set when events are stored in Postgres; integration
	// messages then go through it instead of the direct Publisher.
	Outbox *repos.OutboxRepo
	// Sink is the bus transport; nil when the process does not publish.
	Sink integration.Sink

	closers []func()
}

type Options struct {
	// Sink overrides the transport chosen from config.
	Sink integration.Sink
	// Clock overrides the dispatcher clock.
	Clock func() time.Time
	// WithoutPublisher skips outbound delivery, e.g. for the rebuild tool.
	WithoutPublisher bool
}

func Build(ctx context.Context, cfg config.Config, logger logx.Logger, opts Options) (*Runtime, error) {
	rt := &Runtime{
		Config: cfg,
		Logger: logger,
		Mapper: integration.NewMapper(cfg.EventSource, cfg.EventSchemaVersion),
	}

	if cfg.DatabaseURL != "" {
		pool, err := dbx.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db init: %w", err)
		}
		rt.Pool = pool
		rt.closers = append(rt.closers, pool.Close)

		rt.Outbox = repos.NewOutboxRepo(pool)
		var hooks []eventstore.TxHook
		if !opts.WithoutPublisher {
			hooks = append(hooks, integration.OutboxHook(rt.Outbox, rt.Mapper))
		}
		pg := eventstore.NewPostgres(pool, hooks...)
		views := projection.NewPostgresStore(pool)
		if cfg.DBAutoMigrate {
			schemas := []struct {
				name   string
				ensure func(context.Context) error
			}{
				{"events", pg.EnsureSchema},
				{"views", views.EnsureSchema},
				{"outbox", rt.Outbox.EnsureSchema},
			}
			for _, s := range schemas {
				if err := s.ensure(ctx); err != nil {
					rt.Close()
					return nil, fmt.Errorf("ensure %s schema: %w", s.name, err)
				}
			}
		}
		rt.Events = pg
		rt.Views = views
	} else {
		logger.Warn(ctx, "memory_store", "DATABASE_URL not set, using in-memory event store and views")
		rt.Events = eventstore.NewMemory()
		rt.Views = projection.NewMemoryStore()
	}

	rt.Projector = projection.NewProjector(rt.Views, rt.Events, logger)
	rt.Queries = projection.NewQueries(rt.Views)
	rt.Bus = dispatch.NewBus(logger, rt.Projector)

	if !opts.WithoutPublisher {
		sink := opts.Sink
		if sink == nil {
			s, closeSink, err := NewSink(cfg, logger)
			if err != nil {
				rt.Close()
				return nil, err
			}
			sink = s
			rt.closers = append(rt.closers, closeSink)
		}
		rt.Sink = sink
		if rt.Outbox == nil {
			rt.Bus.Subscribe(integration.NewPublisher(rt.Mapper, sink, logger,
				integration.WithDeadLetter(sink, cfg.DeadLetterTopic),
				integration.WithTimeout(cfg.PublishTimeout()),
				integration.WithRetries(cfg.PublishRetryMax),
			))
		}
	}

	if cfg.InfluxURL != "" {
		influx, err := influxx.New(cfg)
		if err != nil {
			logger.Warn(ctx, "influx_disabled", "completion analytics disabled",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
		} else {
			rt.closers = append(rt.closers, influx.Close)
			rt.Bus.Subscribe(analytics.NewCompletionRecorder(influx))
		}
	}

	dopts := []dispatch.Option{dispatch.WithMaxAttempts(cfg.CommandMaxAttempts)}
	if opts.Clock != nil {
		dopts = append(dopts, dispatch.WithClock(opts.Clock))
	}
	rt.Dispatcher = dispatch.New(rt.Events, rt.Bus, logger, dopts...)
	rt.Commands = NewCommands(rt.Dispatcher)
	return rt, nil
}

// NewSink opens the transport selected by BUS_DRIVER. Kafka without
// brokers degrades to the log sink.
func NewSink(cfg config.Config, logger logx.Logger) (integration.Sink, func(), error) {
	switch cfg.BusDriver {
	case config.BusRabbitMQ:
		p, err := amqpx.NewPublisher(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("amqp init: %w", err)
		}
		return p, func() { _ = p.Close() }, nil
	case config.BusKafka:
		if len(cfg.KafkaBrokers) > 0 {
			p, err := mqx.NewProducer(cfg)
			if err != nil {
				return nil, nil, fmt.Errorf("kafka init: %w", err)
			}
			return p, func() { _ = p.Close() }, nil
		}
	}
	return integration.LogSink{Logger: logger}, func() {}, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
