// Package project is the event-sourced project aggregate. A project lives
// inside one workspace for its whole life.
package project

import "time"

const AggregateType = "project"

const (
	EventCreated       = "ProjectCreated"
	EventUpdated       = "ProjectUpdated"
	EventStatusChanged = "ProjectStatusChanged"
	EventOwnerChanged  = "ProjectOwnerChanged"
	EventArchived      = "ProjectArchived"
	EventDeleted       = "ProjectDeleted"
)

type State struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"ownerId"`
	Status      string    `json:"status"`
	Archived    bool      `json:"archived"`
	Deleted     bool      `json:"deleted"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (s State) Exists() bool { return s.Version > 0 }

type CreatedPayload struct {
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"ownerId"`
	Status      string `json:"status"`
}

type UpdatedPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type StatusChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type OwnerChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ArchivedPayload struct {
	Reason string `json:"reason,omitempty"`
}

type DeletedPayload struct {
	Reason string `json:"reason,omitempty"`
}
