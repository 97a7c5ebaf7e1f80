package project

import (
	"strings"
	"time"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/shared/workflow"
)

func Decide(state State, cmd es.Command, now time.Time) ([]es.Event, error) {
	if c, ok := cmd.(CreateProject); ok {
		return decideCreate(state, c, now)
	}

	if !state.Exists() {
		return nil, es.NotFound(AggregateType, cmd.AggregateID())
	}
	if state.Deleted {
		return nil, es.AlreadyDeleted(AggregateType, state.ID)
	}

	switch c := cmd.(type) {
	case UpdateProject:
		if state.Archived {
			return nil, es.InvalidTransition("project is archived")
		}
		next := UpdatedPayload{Name: state.Name, Description: state.Description}
		if c.Name != nil {
			next.Name = strings.TrimSpace(*c.Name)
			if next.Name == "" {
				return nil, es.Validation("name is required")
			}
		}
		if c.Description != nil {
			next.Description = strings.TrimSpace(*c.Description)
		}
		if next == (UpdatedPayload{Name: state.Name, Description: state.Description}) {
			return nil, nil
		}
		return []es.Event{es.MustEvent(EventUpdated, next, now)}, nil

	case ChangeProjectStatus:
		to := workflow.NormalizeStatus(c.Status)
		if !workflow.ValidProjectStatus(to) {
			return nil, es.Validation("unknown project status %q", c.Status)
		}
		if state.Archived {
			return nil, es.InvalidTransition("project is archived")
		}
		if to == state.Status {
			return nil, nil
		}
		return []es.Event{es.MustEvent(EventStatusChanged, StatusChangedPayload{From: state.Status, To: to}, now)}, nil

	case ChangeProjectOwner:
		owner := strings.TrimSpace(c.OwnerID)
		if owner == "" {
			return nil, es.Validation("owner id is required")
		}
		if state.Archived {
			return nil, es.InvalidTransition("project is archived")
		}
		if owner == state.OwnerID {
			return nil, nil
		}
		return []es.Event{es.MustEvent(EventOwnerChanged, OwnerChangedPayload{From: state.OwnerID, To: owner}, now)}, nil

	case ArchiveProject:
		if state.Archived {
			return nil, es.InvalidTransition("project already archived")
		}
		return []es.Event{es.MustEvent(EventArchived, ArchivedPayload{Reason: strings.TrimSpace(c.Reason)}, now)}, nil

	case DeleteProject:
		return []es.Event{es.MustEvent(EventDeleted, DeletedPayload{Reason: strings.TrimSpace(c.Reason)}, now)}, nil
	}
	return nil, es.Validation("unsupported project command %s", cmd.CommandName())
}

func decideCreate(state State, c CreateProject, now time.Time) ([]es.Event, error) {
	if state.Exists() {
		return nil, es.AlreadyExists(AggregateType, state.ID)
	}
	if strings.TrimSpace(c.ProjectID) == "" {
		return nil, es.Validation("project id is required")
	}
	workspaceID := strings.TrimSpace(c.WorkspaceID)
	if workspaceID == "" {
		return nil, es.Validation("workspace id is required")
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return nil, es.Validation("name is required")
	}
	owner := strings.TrimSpace(c.OwnerID)
	if owner == "" {
		return nil, es.Validation("owner id is required")
	}
	status := workflow.ProjectStatusPlanning
	if strings.TrimSpace(c.Status) != "" {
		status = workflow.NormalizeStatus(c.Status)
		if !workflow.ValidProjectStatus(status) {
			return nil, es.Validation("unknown project status %q", c.Status)
		}
	}
	return []es.Event{es.MustEvent(EventCreated, CreatedPayload{
		WorkspaceID: workspaceID,
		Name:        name,
		Description: strings.TrimSpace(c.Description),
		OwnerID:     owner,
		Status:      status,
	}, now)}, nil
}
