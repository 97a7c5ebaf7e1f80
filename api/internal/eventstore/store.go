// Package eventstore persists aggregate event streams with optimistic
// concurrency on append.
package eventstore

import (
	"context"

	"collab-workspace-system/api/internal/es"
)

type Store interface {
	// Append adds events to the stream when its current version equals
	// expectedVersion and returns them with GlobalSeq assigned. Events
	// must already carry consecutive versions starting at expectedVersion+1.
	Append(ctx context.Context, aggregateID string, expectedVersion int64, events []es.Event) ([]es.Event, error)
	// Load returns the whole stream in version order; empty for unknown ids.
	Load(ctx context.Context, aggregateID string) ([]es.Event, error)
	// ReadAll returns up to limit events with GlobalSeq > afterSeq in order.
	ReadAll(ctx context.Context, afterSeq int64, limit int) ([]es.Event, error)
}

func checkVersions(aggregateID string, expectedVersion int64, events []es.Event) error {
	for i, evt := range events {
		if evt.AggregateID != aggregateID {
			return es.Validation("event %d targets %s, not %s", i, evt.AggregateID, aggregateID)
		}
		if evt.Version != expectedVersion+int64(i)+1 {
			return es.Validation("event %d has version %d, want %d", i, evt.Version, expectedVersion+int64(i)+1)
		}
	}
	return nil
}
