package user

import (
	"net/mail"
	"strings"
	"time"

	"collab-workspace-system/api/internal/es"
)

func Decide(state State, cmd es.Command, now time.Time) ([]es.Event, error) {
	if c, ok := cmd.(RegisterUser); ok {
		if state.Exists() {
			return nil, es.AlreadyExists(AggregateType, state.ID)
		}
		if strings.TrimSpace(c.UserID) == "" {
			return nil, es.Validation("user id is required")
		}
		p, err := normalizeProfile(c.Email, c.Name, c.Role)
		if err != nil {
			return nil, err
		}
		return []es.Event{es.MustEvent(EventRegistered, p, now)}, nil
	}

	if !state.Exists() {
		return nil, es.NotFound(AggregateType, cmd.AggregateID())
	}
	if state.Deleted {
		return nil, es.AlreadyDeleted(AggregateType, state.ID)
	}

	switch c := cmd.(type) {
	case UpdateUserProfile:
		email, name, role := state.Email, state.Name, state.Role
		if c.Email != nil {
			email = *c.Email
		}
		if c.Name != nil {
			name = *c.Name
		}
		if c.Role != nil {
			role = *c.Role
		}
		p, err := normalizeProfile(email, name, role)
		if err != nil {
			return nil, err
		}
		if p == (ProfilePayload{Email: state.Email, Name: state.Name, Role: state.Role}) {
			return nil, nil
		}
		return []es.Event{es.MustEvent(EventProfileUpdated, p, now)}, nil

	case DeactivateUser:
		if !state.Active {
			return nil, nil
		}
		return []es.Event{es.MustEvent(EventDeactivated, ReasonPayload{Reason: strings.TrimSpace(c.Reason)}, now)}, nil

	case ReactivateUser:
		if state.Active {
			return nil, nil
		}
		return []es.Event{es.MustEvent(EventReactivated, ReasonPayload{}, now)}, nil

	case DeleteUser:
		return []es.Event{es.MustEvent(EventDeleted, ReasonPayload{Reason: strings.TrimSpace(c.Reason)}, now)}, nil
	}
	return nil, es.Validation("unsupported user command %s", cmd.CommandName())
}

func normalizeProfile(email, name, role string) (ProfilePayload, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ProfilePayload{}, es.Validation("email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return ProfilePayload{}, es.Validation("invalid email %q", email)
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = DefaultRole
	}
	return ProfilePayload{Email: email, Name: strings.TrimSpace(name), Role: role}, nil
}

func Fold(state State, evt es.Event) (State, error) {
	switch evt.Type {
	case EventRegistered, EventProfileUpdated:
		var p ProfilePayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		if evt.Type == EventRegistered {
			state.ID = evt.AggregateID
			state.Active = true
			state.CreatedAt = evt.OccurredAt
		}
		state.Email = p.Email
		state.Name = p.Name
		state.Role = p.Role
	case EventDeactivated:
		state.Active = false
	case EventReactivated:
		state.Active = true
	case EventDeleted:
		state.Active = false
		state.Deleted = true
	}
	state.Version = evt.Version
	state.UpdatedAt = evt.OccurredAt
	return state, nil
}
