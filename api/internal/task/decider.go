package task

import (
	"slices"
	"strings"
	"time"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/shared/workflow"
)

const (
	maxTitleLength   = 300
	maxCommentLength = 10000
)

func Decide(state State, cmd es.Command, now time.Time) ([]es.Event, error) {
	if c, ok := cmd.(CreateTask); ok {
		return decideCreate(state, c, now)
	}

	if !state.Exists() {
		return nil, es.NotFound(AggregateType, cmd.AggregateID())
	}
	if state.Deleted {
		return nil, es.AlreadyDeleted(AggregateType, state.ID)
	}

	switch c := cmd.(type) {
	case UpdateTaskDetails:
		return decideUpdate(state, c, now)

	case AssignTask:
		userID := strings.TrimSpace(c.UserID)
		if userID == "" {
			return nil, es.Validation("user id is required")
		}
		if userID == state.AssignedUserID {
			return nil, nil
		}
		return one(EventAssigned, AssignedPayload{ProjectID: state.ProjectID, UserID: userID, PreviousUserID: state.AssignedUserID}, now)

	case UnassignTask:
		if state.AssignedUserID == "" {
			return nil, nil
		}
		return one(EventUnassigned, UnassignedPayload{PreviousUserID: state.AssignedUserID}, now)

	case ChangeTaskStatus:
		to := workflow.NormalizeStatus(c.Status)
		if !workflow.ValidTaskStatus(to) {
			return nil, es.Validation("unknown task status %q", c.Status)
		}
		if to == state.Status {
			return nil, nil
		}
		switch workflow.TransitionKind(state.Status, to) {
		case workflow.TransitionStatusChange:
			return one(EventStatusChanged, StatusChangedPayload{ProjectID: state.ProjectID, From: state.Status, To: to}, now)
		case workflow.TransitionComplete:
			return nil, es.InvalidTransition("use CompleteTask to complete a task")
		}
		return nil, es.InvalidTransition("cannot move task from %s to %s", state.Status, to)

	case CompleteTask:
		switch state.Status {
		case workflow.TaskStatusCompleted:
			return nil, es.InvalidTransition("task already completed")
		case workflow.TaskStatusCancelled:
			return nil, es.InvalidTransition("task is cancelled")
		}
		by := strings.TrimSpace(c.CompletedBy)
		if by == "" {
			return nil, es.Validation("completedBy is required")
		}
		p := CompletedPayload{
			ProjectID:      state.ProjectID,
			WorkspaceID:    state.WorkspaceID,
			AssignedUserID: state.AssignedUserID,
			CompletedBy:    by,
			CompletedAt:    now.UTC(),
			PreviousStatus: state.Status,
		}
		if !state.CreatedAt.IsZero() {
			minutes := int64(now.Sub(state.CreatedAt) / time.Minute)
			p.DurationInMinutes = &minutes
		}
		return one(EventCompleted, p, now)

	case SetRecurrence:
		if c.Rule == nil {
			if state.Recurrence == nil {
				return nil, nil
			}
			return one(EventRecurrenceSet, RecurrenceSetPayload{}, now)
		}
		rule := c.Rule.Normalize()
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		if state.Recurrence != nil && state.Recurrence.Equal(rule) {
			return nil, nil
		}
		return one(EventRecurrenceSet, RecurrenceSetPayload{Rule: &rule}, now)

	case RecordOccurrence:
		if c.Occurrence.IsZero() {
			return nil, es.Validation("occurrence is required")
		}
		if state.Recurrence == nil {
			return nil, es.InvalidTransition("task has no recurrence rule")
		}
		occ := c.Occurrence.UTC()
		if state.LastGeneratedOccurrence != nil && !occ.After(*state.LastGeneratedOccurrence) {
			return nil, es.InvalidTransition("occurrence already recorded")
		}
		return one(EventOccurrenceGenerated, OccurrenceGeneratedPayload{Occurrence: occ}, now)

	case AddComment:
		if strings.TrimSpace(c.CommentID) == "" {
			return nil, es.Validation("comment id is required")
		}
		author := strings.TrimSpace(c.AuthorID)
		if author == "" {
			return nil, es.Validation("author id is required")
		}
		content := strings.TrimSpace(c.Content)
		if content == "" {
			return nil, es.Validation("comment content is required")
		}
		if len(content) > maxCommentLength {
			return nil, es.Validation("comment must be at most %d characters", maxCommentLength)
		}
		return one(EventCommentAdded, CommentAddedPayload{Comment: Comment{
			ID:        c.CommentID,
			AuthorID:  author,
			Content:   content,
			Timestamp: now.UTC(),
		}}, now)

	case AddAttachment:
		id := strings.TrimSpace(c.AttachmentID)
		if id == "" {
			return nil, es.Validation("attachment id is required")
		}
		name := strings.TrimSpace(c.FileName)
		if name == "" {
			return nil, es.Validation("file name is required")
		}
		if c.Size < 0 {
			return nil, es.Validation("size must be >= 0")
		}
		if _, ok := state.attachment(id); ok {
			return nil, es.InvalidTransition("attachment %s already exists", id)
		}
		return one(EventAttachmentAdded, AttachmentAddedPayload{Attachment: Attachment{
			ID:       id,
			FileName: name,
			FileType: strings.TrimSpace(c.FileType),
			Size:     c.Size,
		}}, now)

	case RemoveAttachment:
		if _, ok := state.attachment(c.AttachmentID); !ok {
			return nil, es.NotFound("attachment", c.AttachmentID)
		}
		return one(EventAttachmentRemoved, AttachmentRemovedPayload{AttachmentID: c.AttachmentID}, now)

	case UpdateTaskLabels:
		tags, categories := state.Tags, state.Categories
		if c.Tags != nil {
			tags = normalizeSet(c.Tags)
		}
		if c.Categories != nil {
			categories = normalizeSet(c.Categories)
		}
		if slices.Equal(tags, state.Tags) && slices.Equal(categories, state.Categories) {
			return nil, nil
		}
		return one(EventLabelsUpdated, LabelsUpdatedPayload{Tags: tags, Categories: categories}, now)

	case DeleteTask:
		return one(EventDeleted, DeletedPayload{}, now)
	}
	return nil, es.Validation("unsupported task command %s", cmd.CommandName())
}

func decideCreate(state State, c CreateTask, now time.Time) ([]es.Event, error) {
	if state.Exists() {
		return nil, es.AlreadyExists(AggregateType, state.ID)
	}
	if strings.TrimSpace(c.TaskID) == "" {
		return nil, es.Validation("task id is required")
	}
	if strings.TrimSpace(c.WorkspaceID) == "" {
		return nil, es.Validation("workspace id is required")
	}
	if strings.TrimSpace(c.ProjectID) == "" {
		return nil, es.Validation("project id is required")
	}
	title := strings.TrimSpace(c.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	priority, err := normalizePriority(c.Priority)
	if err != nil {
		return nil, err
	}
	var rule *RecurrenceRule
	if c.Recurrence != nil {
		r := c.Recurrence.Normalize()
		if err := r.Validate(); err != nil {
			return nil, err
		}
		rule = &r
	}
	return one(EventCreated, CreatedPayload{
		WorkspaceID:        strings.TrimSpace(c.WorkspaceID),
		ProjectID:          strings.TrimSpace(c.ProjectID),
		Title:              title,
		Description:        strings.TrimSpace(c.Description),
		AssignedUserID:     strings.TrimSpace(c.AssignedUserID),
		Status:             workflow.TaskStatusPending,
		Priority:           priority,
		Deadline:           utc(c.Deadline),
		Recurrence:         rule,
		Tags:               normalizeSet(c.Tags),
		Categories:         normalizeSet(c.Categories),
		CreatedBy:          strings.TrimSpace(c.CreatedBy),
		RecurrenceSourceID: strings.TrimSpace(c.RecurrenceSourceID),
	}, now)
}

func decideUpdate(state State, c UpdateTaskDetails, now time.Time) ([]es.Event, error) {
	next := DetailsUpdatedPayload{
		Title:       state.Title,
		Description: state.Description,
		Priority:    state.Priority,
		Deadline:    state.Deadline,
	}
	if c.Title != nil {
		next.Title = strings.TrimSpace(*c.Title)
		if err := validateTitle(next.Title); err != nil {
			return nil, err
		}
	}
	if c.Description != nil {
		next.Description = strings.TrimSpace(*c.Description)
	}
	if c.Priority != nil {
		p, err := normalizePriority(*c.Priority)
		if err != nil {
			return nil, err
		}
		next.Priority = p
	}
	switch {
	case c.ClearDeadline:
		next.Deadline = nil
	case c.Deadline != nil:
		next.Deadline = utc(c.Deadline)
	}

	unchanged := next.Title == state.Title &&
		next.Description == state.Description &&
		next.Priority == state.Priority &&
		sameTime(next.Deadline, state.Deadline)
	if unchanged {
		return nil, nil
	}
	return one(EventDetailsUpdated, next, now)
}

func one(eventType string, payload any, now time.Time) ([]es.Event, error) {
	evt, err := es.NewEvent(eventType, payload, now)
	if err != nil {
		return nil, err
	}
	return []es.Event{evt}, nil
}

func validateTitle(title string) error {
	if title == "" {
		return es.Validation("title is required")
	}
	if len(title) > maxTitleLength {
		return es.Validation("title must be at most %d characters", maxTitleLength)
	}
	return nil
}

func normalizePriority(raw string) (string, error) {
	switch p := strings.ToLower(strings.TrimSpace(raw)); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", es.Validation("unknown priority %q", raw)
	}
}

// normalizeSet trims, drops empties and removes duplicates, keeping the
// first-seen order.
func normalizeSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
