package models // persistence rows that are not event-sourced

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is one integration message waiting to be sent to the bus.
type OutboxEvent struct {
	EventID       uuid.UUID         // row id, unique per (domain event, topic)
	SourceEventID string            // domain event id, also the integration eventId
	AggregateType string            // workspace/project/task/user
	AggregateID   string            // entity id
	Topic         string            // destination topic
	Key           string            // partition key
	Payload       []byte            // JSON body
	Headers       map[string]string // message headers
	Status        string            // pending/sending/delivered/dead
	Attempts      int               // delivery attempts so far
	NextRetryAt   *time.Time        // earliest next attempt
	LockedAt      *time.Time        // claim time
	LockedBy      *string           // claiming worker
	LastError     *string           // last delivery error
	CreatedAt     time.Time         // insert time
	UpdatedAt     time.Time         // last status change
	PublishedAt   *time.Time        // delivery time
}
