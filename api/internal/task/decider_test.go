package task

import (
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/shared/workflow"
)

var testNow = time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)

type harness struct {
	t      *testing.T
	now    time.Time
	state  State
	stream []es.Event
}

func (h *harness) exec(cmd es.Command) ([]es.Event, error) {
	h.t.Helper()
	events, err := Decide(h.state, cmd, h.now)
	if err != nil {
		return nil, err
	}
	events = es.Stamp(events, AggregateType, cmd.AggregateID(), h.state.Version, "u1", func() string {
		return "e" + strconv.Itoa(len(h.stream)+1)
	})
	for _, evt := range events {
		if h.state, err = Fold(h.state, evt); err != nil {
			h.t.Fatalf("fold: %v", err)
		}
		h.stream = append(h.stream, evt)
	}
	return events, nil
}

func (h *harness) must(cmd es.Command) []es.Event {
	h.t.Helper()
	events, err := h.exec(cmd)
	if err != nil {
		h.t.Fatalf("%s: %v", cmd.CommandName(), err)
	}
	return events
}

func newTask(t *testing.T) *harness {
	h := &harness{t: t, now: testNow}
	h.must(CreateTask{
		TaskID:      "t1",
		WorkspaceID: "w1",
		ProjectID:   "p1",
		Title:       "Write report",
		Priority:    "High",
		Tags:        []string{"q1", " q1", "", "ops"},
		CreatedBy:   "u1",
	})
	return h
}

func TestCreateTask(t *testing.T) {
	h := newTask(t)
	s := h.state
	if s.Status != workflow.TaskStatusPending || s.Priority != PriorityHigh {
		t.Fatalf("unexpected state %+v", s)
	}
	if !reflect.DeepEqual(s.Tags, []string{"q1", "ops"}) {
		t.Fatalf("expected deduped tags, got %v", s.Tags)
	}
	if _, err := Decide(State{}, CreateTask{TaskID: "t2", WorkspaceID: "w1", ProjectID: "p1", Title: "x", Priority: "urgent"}, testNow); !errors.Is(err, es.ErrValidation) {
		t.Fatalf("expected bad priority rejected, got %v", err)
	}
	events, err := Decide(State{}, CreateTask{TaskID: "t2", WorkspaceID: "w1", ProjectID: "p1", Title: "x"}, testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var p CreatedPayload
	_ = events[0].Decode(&p)
	if p.Priority != PriorityMedium {
		t.Fatalf("expected default medium priority, got %q", p.Priority)
	}
	if _, err := h.exec(CreateTask{TaskID: "t1", WorkspaceID: "w1", ProjectID: "p1", Title: "dup"}); !errors.Is(err, es.ErrInvalidTransition) {
		t.Fatalf("expected duplicate rejected, got %v", err)
	}
}

func TestStatusMachine(t *testing.T) {
	h := newTask(t)
	h.must(ChangeTaskStatus{TaskID: "t1", Status: "in_progress"})
	h.must(ChangeTaskStatus{TaskID: "t1", Status: "pending"})
	if h.state.Status != workflow.TaskStatusPending {
		t.Fatalf("expected pending, got %q", h.state.Status)
	}
	if events := h.must(ChangeTaskStatus{TaskID: "t1", Status: "pending"}); len(events) != 0 {
		t.Fatalf("expected same status to be a no-op")
	}
	if _, err := h.exec(ChangeTaskStatus{TaskID: "t1", Status: "completed"}); !errors.Is(err, es.ErrInvalidTransition) {
		t.Fatalf("expected completion via status change rejected, got %v", err)
	}
	if _, err := h.exec(ChangeTaskStatus{TaskID: "t1", Status: "done"}); !errors.Is(err, es.ErrValidation) {
		t.Fatalf("expected unknown status rejected, got %v", err)
	}
	h.must(ChangeTaskStatus{TaskID: "t1", Status: "cancelled"})
	if _, err := h.exec(ChangeTaskStatus{TaskID: "t1", Status: "in_progress"}); !errors.Is(err, es.ErrInvalidTransition) {
		t.Fatalf("expected cancelled task to stay cancelled, got %v", err)
	}
}

func TestCompleteRecordsDuration(t *testing.T) {
	h := newTask(t)
	h.must(ChangeTaskStatus{TaskID: "t1", Status: "in_progress"})
	h.now = testNow.Add(90 * time.Minute)
	events := h.must(CompleteTask{TaskID: "t1", CompletedBy: "u2"})
	if len(events) != 1 || events[0].Type != EventCompleted {
		t.Fatalf("unexpected events %+v", events)
	}
	s := h.state
	if s.Status != workflow.TaskStatusCompleted || s.CompletedBy != "u2" {
		t.Fatalf("unexpected state %+v", s)
	}
	if s.DurationInMinutes == nil || *s.DurationInMinutes != 90 {
		t.Fatalf("expected 90 minutes, got %v", s.DurationInMinutes)
	}
	if s.CompletedAt == nil || !s.CompletedAt.Equal(h.now) {
		t.Fatalf("unexpected completion time %v", s.CompletedAt)
	}
}

func TestCompleteFromTerminalStates(t *testing.T) {
	for _, terminal := range []string{workflow.TaskStatusCompleted, workflow.TaskStatusCancelled} {
		h := newTask(t)
		if terminal == workflow.TaskStatusCompleted {
			h.must(CompleteTask{TaskID: "t1", CompletedBy: "u1"})
		} else {
			h.must(ChangeTaskStatus{TaskID: "t1", Status: terminal})
		}
		_, err := h.exec(CompleteTask{TaskID: "t1", CompletedBy: "u1"})
		if !errors.Is(err, es.ErrInvalidTransition) {
			t.Fatalf("%s: expected invalid transition, got %v", terminal, err)
		}
	}
}

func TestAssignment(t *testing.T) {
	h := newTask(t)
	events := h.must(AssignTask{TaskID: "t1", UserID: "u2"})
	var p AssignedPayload
	_ = events[0].Decode(&p)
	if p.UserID != "u2" || p.PreviousUserID != "" {
		t.Fatalf("unexpected payload %+v", p)
	}
	if events := h.must(AssignTask{TaskID: "t1", UserID: "u2"}); len(events) != 0 {
		t.Fatalf("expected same assignee no-op")
	}
	h.must(UnassignTask{TaskID: "t1"})
	if h.state.AssignedUserID != "" || h.state.Status != workflow.TaskStatusPending {
		t.Fatalf("unassign must not touch status: %+v", h.state)
	}
	if events := h.must(UnassignTask{TaskID: "t1"}); len(events) != 0 {
		t.Fatalf("expected unassign of unassigned task to be a no-op")
	}
}

func TestRecurrenceMarker(t *testing.T) {
	h := newTask(t)
	if _, err := h.exec(RecordOccurrence{TaskID: "t1", Occurrence: testNow}); !errors.Is(err, es.ErrInvalidTransition) {
		t.Fatalf("expected marker on non-recurring task rejected, got %v", err)
	}
	if _, err := h.exec(SetRecurrence{TaskID: "t1", Rule: &RecurrenceRule{Type: "hourly", Interval: 1}}); !errors.Is(err, es.ErrValidation) {
		t.Fatalf("expected bad rule rejected, got %v", err)
	}
	if _, err := h.exec(SetRecurrence{TaskID: "t1", Rule: &RecurrenceRule{Type: "daily", Interval: 0}}); !errors.Is(err, es.ErrValidation) {
		t.Fatalf("expected zero interval rejected, got %v", err)
	}
	h.must(SetRecurrence{TaskID: "t1", Rule: &RecurrenceRule{Type: "Daily", Interval: 1}})
	if events := h.must(SetRecurrence{TaskID: "t1", Rule: &RecurrenceRule{Type: "daily", Interval: 1}}); len(events) != 0 {
		t.Fatalf("expected identical rule to be a no-op")
	}
	occ := testNow.Add(24 * time.Hour)
	h.must(RecordOccurrence{TaskID: "t1", Occurrence: occ})
	if _, err := h.exec(RecordOccurrence{TaskID: "t1", Occurrence: occ}); !errors.Is(err, es.ErrInvalidTransition) {
		t.Fatalf("expected repeated marker rejected, got %v", err)
	}
	if h.state.LastGeneratedOccurrence == nil || !h.state.LastGeneratedOccurrence.Equal(occ) {
		t.Fatalf("unexpected marker %v", h.state.LastGeneratedOccurrence)
	}
	h.must(SetRecurrence{TaskID: "t1"})
	if h.state.Recurrence != nil {
		t.Fatalf("expected recurrence cleared")
	}
}

func TestCommentsAttachmentsLabels(t *testing.T) {
	h := newTask(t)
	h.must(AddComment{TaskID: "t1", CommentID: "c1", AuthorID: "u2", Content: "looks good"})
	if _, err := h.exec(AddComment{TaskID: "t1", CommentID: "c2", AuthorID: "u2", Content: "  "}); !errors.Is(err, es.ErrValidation) {
		t.Fatalf("expected empty comment rejected, got %v", err)
	}
	h.must(AddAttachment{TaskID: "t1", AttachmentID: "a1", FileName: "spec.pdf", FileType: "application/pdf", Size: 1024})
	if _, err := h.exec(AddAttachment{TaskID: "t1", AttachmentID: "a1", FileName: "again.pdf"}); !errors.Is(err, es.ErrInvalidTransition) {
		t.Fatalf("expected duplicate attachment rejected, got %v", err)
	}
	h.must(RemoveAttachment{TaskID: "t1", AttachmentID: "a1"})
	if _, err := h.exec(RemoveAttachment{TaskID: "t1", AttachmentID: "a1"}); !errors.Is(err, es.ErrNotFound) {
		t.Fatalf("expected missing attachment not found, got %v", err)
	}
	h.must(UpdateTaskLabels{TaskID: "t1", Categories: []string{"finance"}})
	if !reflect.DeepEqual(h.state.Tags, []string{"q1", "ops"}) || !reflect.DeepEqual(h.state.Categories, []string{"finance"}) {
		t.Fatalf("unexpected labels %v %v", h.state.Tags, h.state.Categories)
	}
	if len(h.state.Comments) != 1 || h.state.Comments[0].AuthorID != "u2" || len(h.state.Attachments) != 0 {
		t.Fatalf("unexpected state %+v", h.state)
	}
}

func TestDeletedTaskRejectsEverything(t *testing.T) {
	h := newTask(t)
	h.must(DeleteTask{TaskID: "t1"})
	for _, cmd := range []es.Command{
		AssignTask{TaskID: "t1", UserID: "u2"},
		CompleteTask{TaskID: "t1", CompletedBy: "u1"},
		AddComment{TaskID: "t1", CommentID: "c", AuthorID: "u1", Content: "x"},
		DeleteTask{TaskID: "t1"},
	} {
		if _, err := h.exec(cmd); !errors.Is(err, es.ErrAlreadyDeleted) {
			t.Fatalf("%s: expected already deleted, got %v", cmd.CommandName(), err)
		}
	}
}

func TestFoldDoesNotMutatePriorSnapshots(t *testing.T) {
	h := newTask(t)
	h.must(AddComment{TaskID: "t1", CommentID: "c1", AuthorID: "u1", Content: "one"})
	before := h.state
	h.must(AddComment{TaskID: "t1", CommentID: "c2", AuthorID: "u1", Content: "two"})
	if len(before.Comments) != 1 {
		t.Fatalf("earlier snapshot changed: %+v", before.Comments)
	}
}

func TestReplayDeterminism(t *testing.T) {
	h := newTask(t)
	title := "Write final report"
	h.must(UpdateTaskDetails{TaskID: "t1", Title: &title})
	h.must(AssignTask{TaskID: "t1", UserID: "u2"})
	h.must(SetRecurrence{TaskID: "t1", Rule: &RecurrenceRule{Type: "weekly", Interval: 2}})
	h.must(AddComment{TaskID: "t1", CommentID: "c1", AuthorID: "u2", Content: "on it"})
	h.must(ChangeTaskStatus{TaskID: "t1", Status: "in_progress"})
	h.now = testNow.Add(3 * time.Hour)
	h.must(CompleteTask{TaskID: "t1", CompletedBy: "u2"})

	a, err := Replay(h.stream)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	b, _ := Replay(h.stream)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two replays differ:\n%+v\n%+v", a, b)
	}
	if !reflect.DeepEqual(a, h.state) {
		t.Fatalf("replay differs from live state:\n%+v\n%+v", a, h.state)
	}
}
