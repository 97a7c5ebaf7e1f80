package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/shared/events"
	"collab-workspace-system/shared/logx"
)

type sent struct {
	topic   string
	key     string
	headers map[string]string
}

type fakeSink struct {
	mu       sync.Mutex
	failures map[string]int
	block    bool
	calls    map[string]int
	sent     []sent
}

func newFakeSink() *fakeSink {
	return &fakeSink{failures: map[string]int{}, calls: map[string]int{}}
}

func (s *fakeSink) Publish(ctx context.Context, topic string, key []byte, _ []byte, headers map[string]string) error {
	s.mu.Lock()
	s.calls[topic]++
	block := s.block
	if s.failures[topic] > 0 {
		s.failures[topic]--
		s.mu.Unlock()
		return errors.New("broker unavailable")
	}
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	s.sent = append(s.sent, sent{topic: topic, key: string(key), headers: headers})
	s.mu.Unlock()
	return nil
}

func zeroBackOff() backoff.BackOff { return &backoff.ZeroBackOff{} }

func TestPublisherRetriesTransientFailures(t *testing.T) {
	sink := newFakeSink()
	sink.failures[events.TopicTaskEvents] = 2
	p := NewPublisher(NewMapper("svc", "1.0"), sink, logx.Discard(), WithBackOff(zeroBackOff), WithRetries(3))

	_, evt := decided(t, task.State{}, task.CreateTask{TaskID: "t1", WorkspaceID: "w1", ProjectID: "p1", Title: "A"})
	if err := p.Handle(context.Background(), evt); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if sink.calls[events.TopicTaskEvents] != 3 || len(sink.sent) != 1 {
		t.Fatalf("expected 3 calls and 1 delivery, got %d / %d", sink.calls[events.TopicTaskEvents], len(sink.sent))
	}
}

func TestPublisherDeadLettersAfterRetries(t *testing.T) {
	sink := newFakeSink()
	sink.failures[events.TopicAssignmentEvents] = 100
	dlq := newFakeSink()
	p := NewPublisher(NewMapper("svc", "1.0"), sink, logx.Discard(),
		WithBackOff(zeroBackOff), WithRetries(2), WithDeadLetter(dlq, ""))

	state, _ := decided(t, task.State{}, task.CreateTask{TaskID: "t1", WorkspaceID: "w1", ProjectID: "p1", Title: "A"})
	_, evt := decided(t, state, task.AssignTask{TaskID: "t1", UserID: "u1"})

	err := p.Handle(context.Background(), evt)
	if !errors.Is(err, es.ErrPublishFailure) {
		t.Fatalf("expected publish failure, got %v", err)
	}
	if sink.calls[events.TopicAssignmentEvents] != 3 {
		t.Fatalf("expected 3 attempts, got %d", sink.calls[events.TopicAssignmentEvents])
	}
	if len(sink.sent) != 1 || sink.sent[0].topic != events.TopicTaskEvents {
		t.Fatalf("task-events message should still be delivered: %+v", sink.sent)
	}
	if len(dlq.sent) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dlq.sent))
	}
	dl := dlq.sent[0]
	if dl.topic != events.TopicDeadLetter || dl.key != "u1" {
		t.Fatalf("unexpected dead letter %+v", dl)
	}
	if dl.headers[events.HeaderOriginTopic] != events.TopicAssignmentEvents || dl.headers[events.HeaderAttempts] != "3" {
		t.Fatalf("unexpected dead letter headers %v", dl.headers)
	}
}

func TestPublisherTimeoutIsRetriable(t *testing.T) {
	sink := newFakeSink()
	sink.block = true
	dlq := newFakeSink()
	p := NewPublisher(NewMapper("svc", "1.0"), sink, logx.Discard(),
		WithBackOff(zeroBackOff), WithRetries(1), WithTimeout(10*time.Millisecond), WithDeadLetter(dlq, "dlq"))

	err := p.Send(context.Background(), Message{Topic: "task-events", Key: "t1", Headers: map[string]string{}})
	if !errors.Is(err, es.ErrPublishFailure) {
		t.Fatalf("expected publish failure, got %v", err)
	}
	if sink.calls["task-events"] != 2 {
		t.Fatalf("expected timeout to be retried once, got %d calls", sink.calls["task-events"])
	}
	if len(dlq.sent) != 1 || dlq.sent[0].topic != "dlq" {
		t.Fatalf("expected dead letter on dlq, got %+v", dlq.sent)
	}
}
