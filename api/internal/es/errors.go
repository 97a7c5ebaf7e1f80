package es

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindInvalidTransition   Kind = "INVALID_TRANSITION"
	KindNotFound            Kind = "NOT_FOUND"
	KindAlreadyDeleted      Kind = "ALREADY_DELETED"
	KindConcurrencyConflict Kind = "CONCURRENCY_CONFLICT"
	KindPublishFailure      Kind = "PUBLISH_FAILURE"
	KindConsumeFailure      Kind = "CONSUME_FAILURE"
)

// Error is a classified domain failure. errors.Is matches on Kind, so
// callers can test against the sentinels below.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	exists bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	if target == ErrAlreadyExists {
		return e.exists
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrAlreadyDeleted      = &Error{Kind: KindAlreadyDeleted}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrencyConflict}
	ErrPublishFailure      = &Error{Kind: KindPublishFailure}
	ErrConsumeFailure      = &Error{Kind: KindConsumeFailure}

	// ErrAlreadyExists matches create commands aimed at an aggregate that
	// already has history. Such errors are also INVALID_TRANSITION.
	ErrAlreadyExists = errors.New("aggregate already exists")
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(format string, args ...any) error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func AlreadyExists(aggregateType string, id string) error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("%s %s already exists", aggregateType, id), exists: true}
}

func NotFound(aggregateType string, id string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", aggregateType, id)}
}

func AlreadyDeleted(aggregateType string, id string) error {
	return &Error{Kind: KindAlreadyDeleted, Message: fmt.Sprintf("%s %s is deleted", aggregateType, id)}
}

func Conflict(aggregateID string, expected int64, actual int64) error {
	return &Error{
		Kind:    KindConcurrencyConflict,
		Message: fmt.Sprintf("aggregate %s at version %d, expected %d", aggregateID, actual, expected),
	}
}

func PublishFailure(msg string, err error) error {
	return &Error{Kind: KindPublishFailure, Message: msg, Err: err}
}

func ConsumeFailure(msg string, err error) error {
	return &Error{Kind: KindConsumeFailure, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsBusiness reports whether err is a decide-time rejection that retrying
// cannot fix.
func IsBusiness(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindInvalidTransition, KindNotFound, KindAlreadyDeleted:
		return true
	}
	return false
}
