package workflow

import "testing"

func TestTransitionKind(t *testing.T) {
	cases := []struct {
		from, to string
		want     string
	}{
		{TaskStatusPending, TaskStatusInProgress, TransitionStatusChange},
		{TaskStatusInProgress, TaskStatusPending, TransitionStatusChange},
		{TaskStatusPending, TaskStatusCancelled, TransitionStatusChange},
		{TaskStatusInProgress, TaskStatusCompleted, TransitionComplete},
		{TaskStatusCompleted, TaskStatusInProgress, ""},
		{TaskStatusCancelled, TaskStatusCompleted, ""},
		{TaskStatusCompleted, TaskStatusCompleted, ""},
	}
	for _, tc := range cases {
		if got := TransitionKind(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %q, got %q", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	if NormalizeStatus(" InProgress ") != TaskStatusInProgress {
		t.Fatalf("expected in_progress")
	}
	if NormalizeStatus("Canceled") != TaskStatusCancelled {
		t.Fatalf("expected cancelled")
	}
	if !CanTransition("PENDING", "in-progress") {
		t.Fatalf("expected pending -> in-progress to be allowed")
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(TaskStatusCompleted) || !IsTerminal(TaskStatusCancelled) || IsTerminal(TaskStatusPending) {
		t.Fatalf("unexpected terminal classification")
	}
}
