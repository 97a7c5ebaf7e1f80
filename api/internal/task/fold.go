package task

import (
	"slices"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/shared/workflow"
)

// Fold applies one committed event. Slices are copied before they are
// modified so a previously returned State is never mutated.
func Fold(state State, evt es.Event) (State, error) {
	switch evt.Type {
	case EventCreated:
		var p CreatedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.ID = evt.AggregateID
		state.WorkspaceID = p.WorkspaceID
		state.ProjectID = p.ProjectID
		state.Title = p.Title
		state.Description = p.Description
		state.AssignedUserID = p.AssignedUserID
		state.Status = p.Status
		state.Priority = p.Priority
		state.Deadline = p.Deadline
		state.Recurrence = p.Recurrence
		state.Tags = slices.Clone(p.Tags)
		state.Categories = slices.Clone(p.Categories)
		state.CreatedBy = p.CreatedBy
		state.RecurrenceSourceID = p.RecurrenceSourceID
		state.CreatedAt = evt.OccurredAt
	case EventDetailsUpdated:
		var p DetailsUpdatedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.Title = p.Title
		state.Description = p.Description
		state.Priority = p.Priority
		state.Deadline = p.Deadline
	case EventAssigned:
		var p AssignedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.AssignedUserID = p.UserID
	case EventUnassigned:
		state.AssignedUserID = ""
	case EventStatusChanged:
		var p StatusChangedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.Status = p.To
	case EventCompleted:
		var p CompletedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		at := p.CompletedAt
		state.Status = workflow.TaskStatusCompleted
		state.CompletedBy = p.CompletedBy
		state.CompletedAt = &at
		state.DurationInMinutes = p.DurationInMinutes
	case EventRecurrenceSet:
		var p RecurrenceSetPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.Recurrence = p.Rule
	case EventOccurrenceGenerated:
		var p OccurrenceGeneratedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		occ := p.Occurrence
		state.LastGeneratedOccurrence = &occ
	case EventCommentAdded:
		var p CommentAddedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.Comments = append(slices.Clone(state.Comments), p.Comment)
	case EventAttachmentAdded:
		var p AttachmentAddedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.Attachments = append(slices.Clone(state.Attachments), p.Attachment)
	case EventAttachmentRemoved:
		var p AttachmentRemovedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.Attachments = slices.DeleteFunc(slices.Clone(state.Attachments), func(a Attachment) bool {
			return a.ID == p.AttachmentID
		})
	case EventLabelsUpdated:
		var p LabelsUpdatedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.Tags = slices.Clone(p.Tags)
		state.Categories = slices.Clone(p.Categories)
	case EventDeleted:
		state.Deleted = true
	}
	state.Version = evt.Version
	state.UpdatedAt = evt.OccurredAt
	return state, nil
}

func Replay(events []es.Event) (State, error) {
	var state State
	for _, evt := range events {
		var err error
		if state, err = Fold(state, evt); err != nil {
			return state, err
		}
	}
	return state, nil
}
