package task

import "time"

type CreateTask struct {
	TaskID         string
	WorkspaceID    string
	ProjectID      string
	Title          string
	Description    string
	AssignedUserID string
	Priority       string
	Deadline       *time.Time
	Recurrence     *RecurrenceRule
	Tags           []string
	Categories     []string
	CreatedBy      string
	// RecurrenceSourceID marks the task as a scheduled clone.
	RecurrenceSourceID string
}

// UpdateTaskDetails changes the fields that are non-nil. ClearDeadline
// removes the deadline and wins over Deadline.
type UpdateTaskDetails struct {
	TaskID        string
	Title         *string
	Description   *string
	Priority      *string
	Deadline      *time.Time
	ClearDeadline bool
}

type AssignTask struct {
	TaskID string
	UserID string
}

type UnassignTask struct{ TaskID string }

type ChangeTaskStatus struct {
	TaskID string
	Status string
}

type CompleteTask struct {
	TaskID      string
	CompletedBy string
}

// SetRecurrence replaces the rule; a nil Rule stops the series.
type SetRecurrence struct {
	TaskID string
	Rule   *RecurrenceRule
}

// RecordOccurrence advances the generated-occurrence marker.
type RecordOccurrence struct {
	TaskID     string
	Occurrence time.Time
}

type AddComment struct {
	TaskID    string
	CommentID string
	AuthorID  string
	Content   string
}

type AddAttachment struct {
	TaskID       string
	AttachmentID string
	FileName     string
	FileType     string
	Size         int64
}

type RemoveAttachment struct {
	TaskID       string
	AttachmentID string
}

// UpdateTaskLabels replaces tags and/or categories; nil leaves a set as is.
type UpdateTaskLabels struct {
	TaskID     string
	Tags       []string
	Categories []string
}

type DeleteTask struct{ TaskID string }

func (c CreateTask) AggregateID() string        { return c.TaskID }
func (c UpdateTaskDetails) AggregateID() string { return c.TaskID }
func (c AssignTask) AggregateID() string        { return c.TaskID }
func (c UnassignTask) AggregateID() string      { return c.TaskID }
func (c ChangeTaskStatus) AggregateID() string  { return c.TaskID }
func (c CompleteTask) AggregateID() string      { return c.TaskID }
func (c SetRecurrence) AggregateID() string     { return c.TaskID }
func (c RecordOccurrence) AggregateID() string  { return c.TaskID }
func (c AddComment) AggregateID() string        { return c.TaskID }
func (c AddAttachment) AggregateID() string     { return c.TaskID }
func (c RemoveAttachment) AggregateID() string  { return c.TaskID }
func (c UpdateTaskLabels) AggregateID() string  { return c.TaskID }
func (c DeleteTask) AggregateID() string        { return c.TaskID }

func (CreateTask) CommandName() string        { return "CreateTask" }
func (UpdateTaskDetails) CommandName() string { return "UpdateTaskDetails" }
func (AssignTask) CommandName() string        { return "AssignTask" }
func (UnassignTask) CommandName() string      { return "UnassignTask" }
func (ChangeTaskStatus) CommandName() string  { return "ChangeTaskStatus" }
func (CompleteTask) CommandName() string      { return "CompleteTask" }
func (SetRecurrence) CommandName() string     { return "SetRecurrence" }
func (RecordOccurrence) CommandName() string  { return "RecordOccurrence" }
func (AddComment) CommandName() string        { return "AddComment" }
func (AddAttachment) CommandName() string     { return "AddAttachment" }
func (RemoveAttachment) CommandName() string  { return "RemoveAttachment" }
func (UpdateTaskLabels) CommandName() string  { return "UpdateTaskLabels" }
func (DeleteTask) CommandName() string        { return "DeleteTask" }
