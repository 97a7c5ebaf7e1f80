package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/shared/logx"
	"collab-workspace-system/shared/metricsx"
)

// Subscriber receives every committed event, in commit order per aggregate.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, evt es.Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc struct {
	ID string
	Fn func(ctx context.Context, evt es.Event) error
}

func (f SubscriberFunc) Name() string { return f.ID }

func (f SubscriberFunc) Handle(ctx context.Context, evt es.Event) error { return f.Fn(ctx, evt) }

// Bus fans committed events out to subscribers synchronously. A failing
// subscriber is logged and counted; it never fails the command because the
// events are already durable.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	logger      logx.Logger
}

func NewBus(logger logx.Logger, subscribers ...Subscriber) *Bus {
	return &Bus{subscribers: subscribers, logger: logger}
}

func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

func (b *Bus) Publish(ctx context.Context, events []es.Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers...)
	b.mu.RUnlock()

	for _, evt := range events {
		for _, s := range subs {
			if err := s.Handle(ctx, evt); err != nil {
				metricsx.IncSubscriberFailure(s.Name())
				b.logger.Error(ctx, "subscriber_failed", "event subscriber failed",
					slog.String("subscriber", s.Name()),
					slog.String("event_type", evt.Type),
					slog.String("event_id", evt.EventID),
					slog.String("aggregate_id", evt.AggregateID),
					slog.Int64("version", evt.Version),
					slog.String("error_code", string(es.KindOf(err))),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
