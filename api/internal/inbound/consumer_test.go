package inbound

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/shared/events"
	"collab-workspace-system/shared/logx"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	drained   chan struct{}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	if r.drained != nil {
		close(r.drained)
		r.drained = nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Stats() kafka.ReaderStats { return kafka.ReaderStats{Topic: "user-events"} }

type scriptedHandler struct {
	errs  []error
	calls int
}

func (h *scriptedHandler) Handle(context.Context, Event) error {
	h.calls++
	if len(h.errs) == 0 {
		return nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	return err
}

type dlqRecorder struct {
	topics  []string
	headers []map[string]string
	fail    bool
	// failFirst makes the first n publishes fail.
	failFirst int
}

func (d *dlqRecorder) Publish(_ context.Context, topic string, _ []byte, _ []byte, headers map[string]string) error {
	if d.fail {
		return errors.New("broker down")
	}
	if d.failFirst > 0 {
		d.failFirst--
		return errors.New("broker down")
	}
	d.topics = append(d.topics, topic)
	d.headers = append(d.headers, headers)
	return nil
}

type rejectAll struct{}

func (rejectAll) Handle(context.Context, Event) error { return es.Validation("bad email") }

func fastBackOff() backoff.BackOff { return &backoff.ZeroBackOff{} }

func userCreated(offset int64, eventID string) kafka.Message {
	return kafka.Message{
		Topic:  events.TopicUserEvents,
		Offset: offset,
		Key:    []byte("u1"),
		Value:  []byte(`{"eventType":"user_created","eventId":"` + eventID + `","userId":"u1","email":"a@b.io"}`),
	}
}

func newConsumer(h EventHandler, dlq *dlqRecorder, retries int) *Consumer {
	return NewConsumer(nil, h, logx.Discard(),
		WithDeadLetter(dlq, "dlq"),
		WithRetries(retries),
		WithBackOff(fastBackOff),
		WithTimeout(time.Second),
	)
}

func TestProcessSkipsDuplicates(t *testing.T) {
	h := &scriptedHandler{}
	c := newConsumer(h, &dlqRecorder{}, 0)
	for i := 0; i < 3; i++ {
		if err := c.Process(context.Background(), userCreated(int64(i), "e1")); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if h.calls != 1 {
		t.Fatalf("expected handler once, got %d", h.calls)
	}
}

func TestProcessRetriesTransientErrors(t *testing.T) {
	h := &scriptedHandler{errs: []error{errors.New("timeout"), errors.New("timeout")}}
	dlq := &dlqRecorder{}
	c := newConsumer(h, dlq, 3)
	if err := c.Process(context.Background(), userCreated(1, "e1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if h.calls != 3 || len(dlq.topics) != 0 {
		t.Fatalf("expected 3 calls and no dead letter, got %d %v", h.calls, dlq.topics)
	}
}

func TestProcessDeadLettersAfterRetries(t *testing.T) {
	boom := errors.New("db unavailable")
	h := &scriptedHandler{errs: []error{boom, boom, boom}}
	dlq := &dlqRecorder{}
	c := newConsumer(h, dlq, 2)
	if err := c.Process(context.Background(), userCreated(1, "e1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if h.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", h.calls)
	}
	if len(dlq.topics) != 1 || dlq.topics[0] != "dlq" {
		t.Fatalf("expected dead letter, got %v", dlq.topics)
	}
	hd := dlq.headers[0]
	if hd[events.HeaderOriginTopic] != events.TopicUserEvents || hd[events.HeaderAttempts] != "3" {
		t.Fatalf("unexpected headers %v", hd)
	}

	// Dead-lettered events are not processed again.
	if err := c.Process(context.Background(), userCreated(2, "e1")); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if h.calls != 3 {
		t.Fatalf("expected no further calls, got %d", h.calls)
	}
}

func TestProcessBusinessErrorsAreNotRetried(t *testing.T) {
	h := &scriptedHandler{errs: []error{es.NotFound("project", "p9")}}
	dlq := &dlqRecorder{}
	c := newConsumer(h, dlq, 5)
	if err := c.Process(context.Background(), userCreated(1, "e1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if h.calls != 1 || len(dlq.topics) != 1 {
		t.Fatalf("expected one call and a dead letter, got %d %v", h.calls, dlq.topics)
	}
}

func TestProcessMalformedAndUnknown(t *testing.T) {
	h := &scriptedHandler{}
	dlq := &dlqRecorder{}
	c := newConsumer(h, dlq, 0)

	bad := kafka.Message{Topic: events.TopicUserEvents, Value: []byte(`{oops`)}
	if err := c.Process(context.Background(), bad); err != nil {
		t.Fatalf("malformed: %v", err)
	}
	unknown := kafka.Message{Topic: events.TopicUserEvents, Value: []byte(`{"eventType":"user_promoted","userId":"u1"}`)}
	if err := c.Process(context.Background(), unknown); err != nil {
		t.Fatalf("unknown: %v", err)
	}
	if h.calls != 0 {
		t.Fatalf("handler should not run, got %d calls", h.calls)
	}
	if len(dlq.topics) != 1 || dlq.headers[0][events.HeaderAttempts] != "0" {
		t.Fatalf("expected malformed message dead-lettered, got %v", dlq.headers)
	}
}

func TestProcessKeepsOffsetWhenDeadLetterFails(t *testing.T) {
	h := &scriptedHandler{errs: []error{es.Validation("bad email")}}
	c := newConsumer(h, &dlqRecorder{fail: true}, 0)
	err := c.Process(context.Background(), userCreated(1, "e1"))
	if !errors.Is(err, es.ErrConsumeFailure) {
		t.Fatalf("expected consume failure, got %v", err)
	}
}

func TestRunCommitsProcessedMessages(t *testing.T) {
	drained := make(chan struct{})
	reader := &fakeReader{
		msgs:    []kafka.Message{userCreated(10, "e1"), userCreated(11, "e1"), userCreated(12, "e2")},
		drained: drained,
	}
	h := &scriptedHandler{}
	c := NewConsumer(reader, h, logx.Discard(), WithBackOff(fastBackOff))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	<-drained
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(reader.committed) != 3 || reader.committed[2] != 12 {
		t.Fatalf("expected all offsets committed, got %v", reader.committed)
	}
	if h.calls != 2 {
		t.Fatalf("expected 2 handled events, got %d", h.calls)
	}
}

func TestRunDoesNotCommitPastUnsettledMessage(t *testing.T) {
	drained := make(chan struct{})
	reader := &fakeReader{
		msgs:    []kafka.Message{userCreated(1, "e1"), userCreated(2, "e2")},
		drained: drained,
	}
	h := &scriptedHandler{errs: []error{es.Validation("bad email"), es.Validation("bad email")}}
	dlq := &dlqRecorder{failFirst: 1}
	c := NewConsumer(reader, h, logx.Discard(),
		WithDeadLetter(dlq, "dlq"),
		WithRetries(0),
		WithBackOff(fastBackOff),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	<-drained
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(reader.committed) != 2 || reader.committed[0] != 1 || reader.committed[1] != 2 {
		t.Fatalf("expected offsets [1 2] committed in order, got %v", reader.committed)
	}
	if len(dlq.topics) != 1 {
		t.Fatalf("expected the rejected message dead-lettered once, got %v", dlq.topics)
	}
	if h.calls != 3 {
		t.Fatalf("expected offset 1 handled twice and offset 2 once, got %d calls", h.calls)
	}
}

func TestRunStopsRetryingOnCancel(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{userCreated(1, "e1"), userCreated(2, "e2")}}
	c := NewConsumer(reader, rejectAll{}, logx.Discard(),
		WithDeadLetter(&dlqRecorder{fail: true}, "dlq"),
		WithRetries(0),
		WithBackOff(func() backoff.BackOff { return backoff.NewConstantBackOff(5 * time.Millisecond) }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	reader.mu.Lock()
	defer reader.mu.Unlock()
	if len(reader.committed) != 0 {
		t.Fatalf("nothing may be committed while offset 1 is unsettled, got %v", reader.committed)
	}
	if len(reader.msgs) != 1 {
		t.Fatalf("offset 2 must not be fetched, %d messages left", len(reader.msgs))
	}
}

func TestMemoryInboxExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inbox := NewMemoryInbox(time.Hour)
	inbox.now = func() time.Time { return now }
	ctx := context.Background()
	_ = inbox.Mark(ctx, "k")
	if seen, _ := inbox.Seen(ctx, "k"); !seen {
		t.Fatalf("expected seen")
	}
	now = now.Add(2 * time.Hour)
	if seen, _ := inbox.Seen(ctx, "k"); seen {
		t.Fatalf("expected expiry")
	}
}
