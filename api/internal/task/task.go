// Package task is the event-sourced task aggregate, including its status
// state machine and the recurrence rule that drives scheduled clones.
package task

import "time"

const AggregateType = "task"

const (
	EventCreated             = "TaskCreated"
	EventDetailsUpdated      = "TaskDetailsUpdated"
	EventAssigned            = "TaskAssigned"
	EventUnassigned          = "TaskUnassigned"
	EventStatusChanged       = "TaskStatusChanged"
	EventCompleted           = "TaskCompleted"
	EventRecurrenceSet       = "TaskRecurrenceSet"
	EventOccurrenceGenerated = "TaskOccurrenceGenerated"
	EventCommentAdded        = "TaskCommentAdded"
	EventAttachmentAdded     = "TaskAttachmentAdded"
	EventAttachmentRemoved   = "TaskAttachmentRemoved"
	EventLabelsUpdated       = "TaskLabelsUpdated"
	EventDeleted             = "TaskDeleted"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Attachment struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	Size     int64  `json:"size"`
}

type State struct {
	ID             string          `json:"id"`
	WorkspaceID    string          `json:"workspaceId"`
	ProjectID      string          `json:"projectId"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	AssignedUserID string          `json:"assignedUserId,omitempty"`
	Status         string          `json:"status"`
	Priority       string          `json:"priority"`
	Deadline       *time.Time      `json:"deadline,omitempty"`
	Recurrence     *RecurrenceRule `json:"recurrenceRule,omitempty"`
	Tags           []string        `json:"tags"`
	Categories     []string        `json:"categories"`
	Comments       []Comment       `json:"comments"`
	Attachments    []Attachment    `json:"attachments"`

	CreatedBy         string     `json:"createdBy,omitempty"`
	CompletedBy       string     `json:"completedBy,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	DurationInMinutes *int64     `json:"durationInMinutes,omitempty"`

	// RecurrenceSourceID is set on clones produced by the scheduler.
	RecurrenceSourceID string `json:"recurrenceSourceId,omitempty"`
	// LastGeneratedOccurrence is the latest occurrence already cloned from
	// this task; the scheduler never generates at or before it again.
	LastGeneratedOccurrence *time.Time `json:"lastGeneratedOccurrence,omitempty"`

	Deleted   bool      `json:"deleted"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s State) Exists() bool { return s.Version > 0 }

func (s State) attachment(id string) (Attachment, bool) {
	for _, a := range s.Attachments {
		if a.ID == id {
			return a, true
		}
	}
	return Attachment{}, false
}
