// Package dispatch runs commands against event-sourced aggregates:
// load, fold, decide, append with optimistic concurrency, publish.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/eventstore"
	"collab-workspace-system/shared/actorx"
	"collab-workspace-system/shared/logx"
	"collab-workspace-system/shared/metricsx"
)

const DefaultMaxAttempts = 3

// Aggregate describes one aggregate type to the dispatcher.
type Aggregate[S any] struct {
	Type   string
	Fold   func(S, es.Event) (S, error)
	Decide func(S, es.Command, time.Time) ([]es.Event, error)
}

type Result[S any] struct {
	State   S
	Events  []es.Event
	Version int64
}

type Dispatcher struct {
	store       eventstore.Store
	bus         *Bus
	logger      logx.Logger
	now         func() time.Time
	newID       func() string
	maxAttempts int
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithIDs(newID func() string) Option {
	return func(d *Dispatcher) { d.newID = newID }
}

func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

func New(store eventstore.Store, bus *Bus, logger logx.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		bus:         bus,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Store() eventstore.Store { return d.store }

func (d *Dispatcher) Bus() *Bus { return d.bus }

// Load rebuilds the current state of one aggregate from its stream.
func Load[S any](ctx context.Context, store eventstore.Store, agg Aggregate[S], id string) (S, int64, error) {
	var state S
	events, err := store.Load(ctx, id)
	if err != nil {
		return state, 0, fmt.Errorf("load %s %s: %w", agg.Type, id, err)
	}
	var version int64
	for _, evt := range events {
		if state, err = agg.Fold(state, evt); err != nil {
			return state, version, fmt.Errorf("fold %s %s: %w", agg.Type, id, err)
		}
		version = evt.Version
	}
	return state, version, nil
}

// Execute runs cmd to completion. A concurrency conflict reloads and
// re-decides up to the configured attempt budget; decide rejections are
// returned immediately.
func Execute[S any](ctx context.Context, d *Dispatcher, agg Aggregate[S], cmd es.Command) (Result[S], error) {
	start := time.Now()
	ctx, span := otel.Tracer("dispatch").Start(ctx, "command.execute")
	span.SetAttributes(
		attribute.String("aggregate.type", agg.Type),
		attribute.String("aggregate.id", cmd.AggregateID()),
		attribute.String("command.name", cmd.CommandName()),
	)
	defer span.End()

	res, err := execute(ctx, d, agg, cmd)
	outcome := "accepted"
	switch {
	case err == nil && len(res.Events) == 0:
		outcome = "noop"
	case err != nil && es.IsBusiness(err):
		outcome = "rejected"
	case err != nil && errors.Is(err, es.ErrConcurrencyConflict):
		outcome = "conflict"
	case err != nil:
		outcome = "error"
	}
	metricsx.ObserveCommand(agg.Type, cmd.CommandName(), outcome, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(es.KindOf(err)))
	}
	return res, err
}

func execute[S any](ctx context.Context, d *Dispatcher, agg Aggregate[S], cmd es.Command) (Result[S], error) {
	id := cmd.AggregateID()
	actorID := actorx.IDFromContext(ctx)

	for attempt := 1; ; attempt++ {
		state, version, err := Load(ctx, d.store, agg, id)
		if err != nil {
			return Result[S]{}, err
		}

		decided, err := agg.Decide(state, cmd, d.now())
		if err != nil {
			return Result[S]{State: state, Version: version}, err
		}
		if len(decided) == 0 {
			return Result[S]{State: state, Version: version}, nil
		}

		stamped := es.Stamp(decided, agg.Type, id, version, actorID, d.newID)
		stored, err := d.store.Append(ctx, id, version, stamped)
		if errors.Is(err, es.ErrConcurrencyConflict) {
			metricsx.IncCommandConflict(agg.Type)
			if attempt >= d.maxAttempts {
				d.logger.Warn(ctx, "command_conflict", "concurrency conflict retries exhausted",
					slog.String("aggregate_type", agg.Type),
					slog.String("aggregate_id", id),
					slog.String("command", cmd.CommandName()),
					slog.Int("attempts", attempt),
					slog.String("error_code", string(es.KindConcurrencyConflict)),
				)
				return Result[S]{}, err
			}
			d.logger.Debug(ctx, "command_retry", "retrying after concurrency conflict",
				slog.String("aggregate_id", id),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return Result[S]{}, fmt.Errorf("append %s %s: %w", agg.Type, id, err)
		}

		for _, evt := range stored {
			if state, err = agg.Fold(state, evt); err != nil {
				return Result[S]{}, fmt.Errorf("fold %s %s: %w", agg.Type, id, err)
			}
			version = evt.Version
			metricsx.IncEventsAppended(evt.Type)
		}
		d.bus.Publish(ctx, stored)
		return Result[S]{State: state, Events: stored, Version: version}, nil
	}
}
