package task

import "time"

type CreatedPayload struct {
	WorkspaceID        string          `json:"workspaceId"`
	ProjectID          string          `json:"projectId"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	AssignedUserID     string          `json:"assignedUserId,omitempty"`
	Status             string          `json:"status"`
	Priority           string          `json:"priority"`
	Deadline           *time.Time      `json:"deadline,omitempty"`
	Recurrence         *RecurrenceRule `json:"recurrenceRule,omitempty"`
	Tags               []string        `json:"tags,omitempty"`
	Categories         []string        `json:"categories,omitempty"`
	CreatedBy          string          `json:"createdBy,omitempty"`
	RecurrenceSourceID string          `json:"recurrenceSourceId,omitempty"`
}

type DetailsUpdatedPayload struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// ProjectID is carried on the events published outward so consumers do
// not need the task stream to route them.
type AssignedPayload struct {
	ProjectID      string `json:"projectId,omitempty"`
	UserID         string `json:"userId"`
	PreviousUserID string `json:"previousUserId,omitempty"`
}

type UnassignedPayload struct {
	PreviousUserID string `json:"previousUserId"`
}

type StatusChangedPayload struct {
	ProjectID string `json:"projectId,omitempty"`
	From      string `json:"from"`
	To        string `json:"to"`
}

type CompletedPayload struct {
	ProjectID         string    `json:"projectId,omitempty"`
	WorkspaceID       string    `json:"workspaceId,omitempty"`
	AssignedUserID    string    `json:"assignedUserId,omitempty"`
	CompletedBy       string    `json:"completedBy"`
	CompletedAt       time.Time `json:"completedAt"`
	PreviousStatus    string    `json:"previousStatus"`
	DurationInMinutes *int64    `json:"durationInMinutes,omitempty"`
}

type RecurrenceSetPayload struct {
	Rule *RecurrenceRule `json:"rule,omitempty"`
}

type OccurrenceGeneratedPayload struct {
	Occurrence time.Time `json:"occurrence"`
}

type CommentAddedPayload struct {
	Comment Comment `json:"comment"`
}

type AttachmentAddedPayload struct {
	Attachment Attachment `json:"attachment"`
}

type AttachmentRemovedPayload struct {
	AttachmentID string `json:"attachmentId"`
}

type LabelsUpdatedPayload struct {
	Tags       []string `json:"tags"`
	Categories []string `json:"categories"`
}

type DeletedPayload struct{}
