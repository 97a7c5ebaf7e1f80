package eventstore

import (
	"context"
	"sync"

	"collab-workspace-system/api/internal/es"
)

type Memory struct {
	mu     sync.RWMutex
	byAgg  map[string][]es.Event
	global []es.Event
}

func NewMemory() *Memory {
	return &Memory{byAgg: map[string][]es.Event{}}
}

func (m *Memory) Append(_ context.Context, aggregateID string, expectedVersion int64, events []es.Event) ([]es.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}
	if err := checkVersions(aggregateID, expectedVersion, events); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := int64(len(m.byAgg[aggregateID]))
	if current != expectedVersion {
		return nil, es.Conflict(aggregateID, expectedVersion, current)
	}
	out := make([]es.Event, len(events))
	for i, evt := range events {
		evt.GlobalSeq = int64(len(m.global)) + 1
		m.global = append(m.global, evt)
		m.byAgg[aggregateID] = append(m.byAgg[aggregateID], evt)
		out[i] = evt
	}
	return out, nil
}

func (m *Memory) Load(_ context.Context, aggregateID string) ([]es.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stream := m.byAgg[aggregateID]
	out := make([]es.Event, len(stream))
	copy(out, stream)
	return out, nil
}

func (m *Memory) ReadAll(_ context.Context, afterSeq int64, limit int) ([]es.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if afterSeq < 0 {
		afterSeq = 0
	}
	if afterSeq >= int64(len(m.global)) {
		return nil, nil
	}
	rest := m.global[afterSeq:]
	if limit > 0 && len(rest) > limit {
		rest = rest[:limit]
	}
	out := make([]es.Event, len(rest))
	copy(out, rest)
	return out, nil
}
