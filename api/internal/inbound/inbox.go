package inbound

import (
	"context"
	"sync"
	"time"

	"collab-workspace-system/shared/cachex"
)

const inboxPrefix = "inbox:"

// Inbox remembers processed event ids so redelivered messages are skipped.
type Inbox interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type RedisInbox struct {
	client *cachex.Client
	ttl    time.Duration
}

func NewRedisInbox(client *cachex.Client, ttl time.Duration) *RedisInbox {
	return &RedisInbox{client: client, ttl: ttl}
}

func (r *RedisInbox) Seen(ctx context.Context, key string) (bool, error) {
	var at time.Time
	return r.client.GetJSON(ctx, inboxPrefix+key, &at)
}

// Mark stores the processing time and restarts the TTL.
func (r *RedisInbox) Mark(ctx context.Context, key string) error {
	return r.client.SetJSON(ctx, inboxPrefix+key, time.Now().UTC(), r.ttl)
}

type MemoryInbox struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

func NewMemoryInbox(ttl time.Duration) *MemoryInbox {
	return &MemoryInbox{ttl: ttl, now: time.Now, seen: map[string]time.Time{}}
}

func (m *MemoryInbox) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.seen[key]
	if !ok {
		return false, nil
	}
	if m.ttl > 0 && m.now().Sub(at) > m.ttl {
		delete(m.seen, key)
		return false, nil
	}
	return true, nil
}

func (m *MemoryInbox) Mark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[key]; !ok {
		m.seen[key] = m.now()
	}
	return nil
}
