package es

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesByKind(t *testing.T) {
	err := fmt.Errorf("create task: %w", InvalidTransition("task already completed"))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected kind match")
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("unexpected validation match")
	}
	if !errors.Is(err, &Error{Kind: KindInvalidTransition, Message: "task already completed"}) {
		t.Fatalf("expected message match")
	}
	if errors.Is(err, &Error{Kind: KindInvalidTransition, Message: "other"}) {
		t.Fatalf("unexpected message match")
	}
	if KindOf(err) != KindInvalidTransition {
		t.Fatalf("unexpected kind %q", KindOf(err))
	}
}

func TestAlreadyExistsIsAnInvalidTransition(t *testing.T) {
	err := fmt.Errorf("create: %w", AlreadyExists("task", "t1"))
	if !errors.Is(err, ErrAlreadyExists) || !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected both matches for %v", err)
	}
	if errors.Is(InvalidTransition("project p1 is archived"), ErrAlreadyExists) {
		t.Fatalf("other transitions must not match already exists")
	}
}

func TestIsBusiness(t *testing.T) {
	if !IsBusiness(NotFound("task", "t1")) {
		t.Fatalf("not found is a business error")
	}
	if IsBusiness(Conflict("t1", 1, 2)) {
		t.Fatalf("conflict is retriable")
	}
	if IsBusiness(errors.New("io")) {
		t.Fatalf("plain errors are not business errors")
	}
}

func TestPublishFailureUnwraps(t *testing.T) {
	cause := errors.New("broker down")
	err := PublishFailure("task-events", cause)
	if !errors.Is(err, cause) || !errors.Is(err, ErrPublishFailure) {
		t.Fatalf("expected both cause and kind to match")
	}
}
