package workspace

import (
	"strings"
	"time"

	"collab-workspace-system/api/internal/es"
)

const maxTitleLength = 200

func Decide(state State, cmd es.Command, now time.Time) ([]es.Event, error) {
	if c, ok := cmd.(CreateWorkspace); ok {
		return decideCreate(state, c, now)
	}

	if !state.Exists() {
		return nil, es.NotFound(AggregateType, cmd.AggregateID())
	}
	if state.Deleted {
		return nil, es.AlreadyDeleted(AggregateType, state.ID)
	}

	switch c := cmd.(type) {
	case UpdateWorkspace:
		if state.Archived {
			return nil, es.InvalidTransition("workspace is archived")
		}
		next := UpdatedPayload{Title: state.Title, Description: state.Description}
		if c.Title != nil {
			next.Title = strings.TrimSpace(*c.Title)
			if err := validateTitle(next.Title); err != nil {
				return nil, err
			}
		}
		if c.Description != nil {
			next.Description = strings.TrimSpace(*c.Description)
		}
		if next.Title == state.Title && next.Description == state.Description {
			return nil, nil
		}
		return []es.Event{es.MustEvent(EventUpdated, next, now)}, nil

	case AddMember:
		userID := strings.TrimSpace(c.UserID)
		if userID == "" {
			return nil, es.Validation("user id is required")
		}
		if state.Archived {
			return nil, es.InvalidTransition("workspace is archived")
		}
		if state.IsMember(userID) {
			return nil, nil
		}
		return []es.Event{es.MustEvent(EventMemberAdded, MemberPayload{UserID: userID}, now)}, nil

	case RemoveMember:
		userID := strings.TrimSpace(c.UserID)
		if userID == "" {
			return nil, es.Validation("user id is required")
		}
		if state.Archived {
			return nil, es.InvalidTransition("workspace is archived")
		}
		if userID == state.OwnerID {
			return nil, es.InvalidTransition("cannot remove the workspace owner")
		}
		if !state.IsMember(userID) {
			return nil, nil
		}
		return []es.Event{es.MustEvent(EventMemberRemoved, MemberPayload{UserID: userID}, now)}, nil

	case ArchiveWorkspace:
		if state.Archived {
			return nil, es.InvalidTransition("workspace already archived")
		}
		return []es.Event{es.MustEvent(EventArchived, emptyPayload{}, now)}, nil

	case UnarchiveWorkspace:
		if !state.Archived {
			return nil, es.InvalidTransition("workspace is not archived")
		}
		return []es.Event{es.MustEvent(EventUnarchived, emptyPayload{}, now)}, nil

	case DeleteWorkspace:
		return []es.Event{es.MustEvent(EventDeleted, emptyPayload{}, now)}, nil
	}
	return nil, es.Validation("unsupported workspace command %s", cmd.CommandName())
}

func decideCreate(state State, c CreateWorkspace, now time.Time) ([]es.Event, error) {
	if state.Exists() {
		return nil, es.AlreadyExists(AggregateType, state.ID)
	}
	if strings.TrimSpace(c.WorkspaceID) == "" {
		return nil, es.Validation("workspace id is required")
	}
	title := strings.TrimSpace(c.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	owner := strings.TrimSpace(c.OwnerID)
	if owner == "" {
		return nil, es.Validation("owner id is required")
	}
	return []es.Event{es.MustEvent(EventCreated, CreatedPayload{
		Title:       title,
		Description: strings.TrimSpace(c.Description),
		OwnerID:     owner,
	}, now)}, nil
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
