// Package es holds the building blocks shared by every event-sourced
// aggregate: the stored event record, the command contract and the error
// taxonomy returned by decide functions.
package es

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is an immutable fact appended to an aggregate stream. Version is
// the 1-based position inside the stream; GlobalSeq orders all streams and
// is assigned by the store on append.
type Event struct {
	EventID       string          `json:"eventId"`
	AggregateID   string          `json:"aggregateId"`
	AggregateType string          `json:"aggregateType"`
	Version       int64           `json:"version"`
	Type          string          `json:"type"`
	ActorID       string          `json:"actorId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
	GlobalSeq     int64           `json:"globalSeq,omitempty"`
}

// Command targets exactly one aggregate instance.
type Command interface {
	AggregateID() string
	CommandName() string
}

// NewEvent builds an unstamped event; the dispatcher fills ids and versions.
func NewEvent(eventType string, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: raw, OccurredAt: at.UTC()}, nil
}

// MustEvent is NewEvent for payloads that are plain structs and cannot
// fail to marshal.
func MustEvent(eventType string, payload any, at time.Time) Event {
	evt, err := NewEvent(eventType, payload, at)
	if err != nil {
		panic(err)
	}
	return evt
}

// Decode unmarshals the event payload into dst.
func (e Event) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s v%d: %w", e.Type, e.Version, err)
	}
	return nil
}

// Stamp fills the identity fields of freshly decided events so they can be
// appended after baseVersion. It returns a new slice.
func Stamp(events []Event, aggregateType string, aggregateID string, baseVersion int64, actorID string, newID func() string) []Event {
	out := make([]Event, len(events))
	for i, evt := range events {
		if evt.EventID == "" {
			evt.EventID = newID()
		}
		evt.AggregateID = aggregateID
		evt.AggregateType = aggregateType
		evt.Version = baseVersion + int64(i) + 1
		if evt.ActorID == "" {
			evt.ActorID = actorID
		}
		out[i] = evt
	}
	return out
}
