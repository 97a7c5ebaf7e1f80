package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/models"
	"collab-workspace-system/api/internal/repos"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/shared/events"
	"collab-workspace-system/shared/logx"
)

type fakeOutbox struct {
	rows map[uuid.UUID]models.OutboxEvent
}

func (f *fakeOutbox) ClaimPending(_ context.Context, owner string, limit int) ([]models.OutboxEvent, error) {
	var out []models.OutboxEvent
	for id, row := range f.rows {
		if row.Status == repos.OutboxStatusPending && len(out) < limit {
			row.Status = repos.OutboxStatusSending
			row.LockedBy = &owner
			f.rows[id] = row
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeOutbox) GetByID(_ context.Context, id uuid.UUID) (models.OutboxEvent, error) {
	row, ok := f.rows[id]
	if !ok {
		return row, errors.New("no rows")
	}
	return row, nil
}

func (f *fakeOutbox) MarkDelivered(_ context.Context, id uuid.UUID) error {
	row := f.rows[id]
	row.Status = repos.OutboxStatusDelivered
	f.rows[id] = row
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, attempts int, next *time.Time, lastErr string, dead bool) error {
	row := f.rows[id]
	row.Attempts = attempts
	row.NextRetryAt = next
	row.LastError = &lastErr
	row.Status = repos.OutboxStatusPending
	if dead {
		row.Status = repos.OutboxStatusDead
	}
	f.rows[id] = row
	return nil
}

func (f *fakeOutbox) EnsurePending(_ context.Context, id uuid.UUID) error {
	row := f.rows[id]
	if row.Status == repos.OutboxStatusSending {
		row.Status = repos.OutboxStatusPending
		row.LockedBy = nil
		f.rows[id] = row
	}
	return nil
}

func outboxFixture(t *testing.T) (*fakeOutbox, []models.OutboxEvent) {
	t.Helper()
	state, _ := decided(t, task.State{}, task.CreateTask{TaskID: "t1", WorkspaceID: "w1", ProjectID: "p1", Title: "A"})
	_, evt := decided(t, state, task.AssignTask{TaskID: "t1", UserID: "u1"})
	msgs, err := NewMapper("svc", "1.0").Map(evt)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	store := &fakeOutbox{rows: map[uuid.UUID]models.OutboxEvent{}}
	var rows []models.OutboxEvent
	for _, msg := range msgs {
		row := OutboxRow(evt, msg)
		store.rows[row.EventID] = row
		rows = append(rows, row)
	}
	return store, rows
}

func TestOutboxRowIDsAreStable(t *testing.T) {
	_, first := outboxFixture(t)
	_, second := outboxFixture(t)
	if len(first) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(first))
	}
	if first[0].EventID != second[0].EventID {
		t.Fatalf("row id should be derived from event and topic")
	}
	if first[0].EventID == first[1].EventID {
		t.Fatalf("rows for different topics must differ")
	}
	if first[1].Key != "u1" || first[1].Topic != events.TopicAssignmentEvents {
		t.Fatalf("unexpected row %+v", first[1])
	}
}

func TestRelayDeliversClaimedRows(t *testing.T) {
	store, rows := outboxFixture(t)
	sink := newFakeSink()
	relay := NewRelay(store, sink, 3, logx.Discard())
	ctx := context.Background()

	claimed, err := relay.Claim(ctx, "worker-1", 10)
	if err != nil || len(claimed) != 2 {
		t.Fatalf("claim: %d %v", len(claimed), err)
	}
	for _, row := range rows {
		if err := relay.Deliver(ctx, row.EventID); err != nil {
			t.Fatalf("deliver: %v", err)
		}
		if store.rows[row.EventID].Status != repos.OutboxStatusDelivered {
			t.Fatalf("row not delivered")
		}
	}
	// Already delivered rows are skipped.
	if err := relay.Deliver(ctx, rows[0].EventID); err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if len(sink.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sink.sent))
	}
}

func TestRelayRetriesThenDeadLetters(t *testing.T) {
	store, rows := outboxFixture(t)
	sink := newFakeSink()
	sink.failures[events.TopicTaskEvents] = 100
	relay := NewRelay(store, sink, 2, logx.Discard())
	ctx := context.Background()
	id := rows[0].EventID

	err := relay.Deliver(ctx, id)
	if !errors.Is(err, es.ErrPublishFailure) {
		t.Fatalf("expected retriable publish failure, got %v", err)
	}
	row := store.rows[id]
	if row.Status != repos.OutboxStatusPending || row.Attempts != 1 || row.NextRetryAt == nil {
		t.Fatalf("unexpected row after first failure %+v", row)
	}

	if err := relay.Deliver(ctx, id); err != nil {
		t.Fatalf("final failure should be absorbed, got %v", err)
	}
	if store.rows[id].Status != repos.OutboxStatusDead {
		t.Fatalf("expected dead row, got %s", store.rows[id].Status)
	}
	if len(sink.sent) != 1 || sink.sent[0].topic != events.TopicDeadLetter {
		t.Fatalf("expected dead letter, got %+v", sink.sent)
	}
	if sink.sent[0].headers[events.HeaderOriginTopic] != events.TopicTaskEvents {
		t.Fatalf("unexpected headers %v", sink.sent[0].headers)
	}
}

func TestScanReturnsUnqueuedRowsWithoutSpendingAttempts(t *testing.T) {
	store, rows := outboxFixture(t)
	relay := NewRelay(store, newFakeSink(), 1, logx.Discard())
	ctx := context.Background()

	queued := map[uuid.UUID]bool{}
	handoff := func(_ context.Context, id uuid.UUID) error {
		if id == rows[0].EventID {
			return errors.New("redis: connection refused")
		}
		queued[id] = true
		return nil
	}
	handed, err := relay.Scan(ctx, "worker-1", 10, handoff)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if handed != 1 || !queued[rows[1].EventID] {
		t.Fatalf("expected only the second row handed off, got %d %v", handed, queued)
	}
	failed := store.rows[rows[0].EventID]
	if failed.Status != repos.OutboxStatusPending || failed.Attempts != 0 || failed.LastError != nil {
		t.Fatalf("row should be pending with no attempt spent, got %+v", failed)
	}
	if store.rows[rows[1].EventID].Status != repos.OutboxStatusSending {
		t.Fatalf("handed-off row should stay claimed")
	}

	// The returned row is claimed again on the next scan.
	handed, err = relay.Scan(ctx, "worker-1", 10, func(context.Context, uuid.UUID) error { return nil })
	if err != nil || handed != 1 {
		t.Fatalf("second scan: %d %v", handed, err)
	}
}

func TestRetryDelay(t *testing.T) {
	cases := map[int]time.Duration{0: 5 * time.Second, 1: 5 * time.Second, 2: 20 * time.Second, 100: 5 * time.Minute}
	for attempt, want := range cases {
		if got := RetryDelay(attempt); got != want {
			t.Fatalf("RetryDelay(%d) = %s, want %s", attempt, got, want)
		}
	}
}
