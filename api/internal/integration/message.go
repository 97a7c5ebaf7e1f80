// Package integration turns committed domain events into the versioned
// integration events other services consume, and delivers them.
package integration

import (
	"encoding/json"
	"time"

	"collab-workspace-system/shared/events"
)

// Message is one integration event bound for one topic.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Integration payloads. The envelope is flattened into the body.

type TaskCreated struct {
	events.Envelope
	TaskID         string     `json:"taskId"`
	WorkspaceID    string     `json:"workspaceId"`
	ProjectID      string     `json:"projectId"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	AssignedUserID string     `json:"assignedUserId,omitempty"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	Categories     []string   `json:"categories,omitempty"`
	CreatedBy      string     `json:"createdBy,omitempty"`
	Recurring      bool       `json:"recurring"`
}

type TaskCompleted struct {
	events.Envelope
	TaskID            string    `json:"taskId"`
	ProjectID         string    `json:"projectId"`
	WorkspaceID       string    `json:"workspaceId,omitempty"`
	AssignedUserID    string    `json:"assignedUserId,omitempty"`
	CompletedBy       string    `json:"completedBy"`
	CompletionTime    time.Time `json:"completionTime"`
	DurationInMinutes *int64    `json:"durationInMinutes,omitempty"`
}

type TaskAssigned struct {
	events.Envelope
	TaskID         string `json:"taskId"`
	ProjectID      string `json:"projectId,omitempty"`
	AssignedUserID string `json:"assignedUserId"`
	PreviousUserID string `json:"previousUserId,omitempty"`
	AssignedBy     string `json:"assignedBy,omitempty"`
}

type TaskStatusChanged struct {
	events.Envelope
	TaskID    string `json:"taskId"`
	ProjectID string `json:"projectId,omitempty"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
}

// DomainEvent is the fallback shape for events without a dedicated contract.
type DomainEvent struct {
	events.Envelope
	AggregateType    string          `json:"aggregateType"`
	AggregateID      string          `json:"aggregateId"`
	AggregateVersion int64           `json:"aggregateVersion"`
	ActorID          string          `json:"actorId,omitempty"`
	Data             json.RawMessage `json:"data"`
}
