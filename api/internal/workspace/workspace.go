// Package workspace is the event-sourced workspace aggregate: a titled
// container owned by one user with a set of members.
package workspace

import "time"

const AggregateType = "workspace"

const (
	EventCreated       = "WorkspaceCreated"
	EventUpdated       = "WorkspaceUpdated"
	EventMemberAdded   = "WorkspaceMemberAdded"
	EventMemberRemoved = "WorkspaceMemberRemoved"
	EventArchived      = "WorkspaceArchived"
	EventUnarchived    = "WorkspaceUnarchived"
	EventDeleted       = "WorkspaceDeleted"
)

type State struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"ownerId"`
	MemberIDs   []string  `json:"memberIds"`
	Archived    bool      `json:"archived"`
	Deleted     bool      `json:"deleted"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (s State) Exists() bool { return s.Version > 0 }

func (s State) IsMember(userID string) bool {
	for _, id := range s.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type CreatedPayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"ownerId"`
}

type UpdatedPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type MemberPayload struct {
	UserID string `json:"userId"`
}

type emptyPayload struct{}
