package workspace

import (
	"slices"

	"collab-workspace-system/api/internal/es"
)

// Fold applies one committed event. It never shares slice backing arrays
// with the input state, so earlier snapshots stay valid.
func Fold(state State, evt es.Event) (State, error) {
	switch evt.Type {
	case EventCreated:
		var p CreatedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.ID = evt.AggregateID
		state.Title = p.Title
		state.Description = p.Description
		state.OwnerID = p.OwnerID
		state.MemberIDs = []string{p.OwnerID}
		state.CreatedAt = evt.OccurredAt
	case EventUpdated:
		var p UpdatedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.Title = p.Title
		state.Description = p.Description
	case EventMemberAdded:
		var p MemberPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		if !state.IsMember(p.UserID) {
			state.MemberIDs = append(slices.Clone(state.MemberIDs), p.UserID)
		}
	case EventMemberRemoved:
		var p MemberPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.MemberIDs = slices.DeleteFunc(slices.Clone(state.MemberIDs), func(id string) bool { return id == p.UserID })
	case EventArchived:
		state.Archived = true
	case EventUnarchived:
		state.Archived = false
	case EventDeleted:
		state.Deleted = true
	}
	state.Version = evt.Version
	state.UpdatedAt = evt.OccurredAt
	return state, nil
}

// Replay folds a full stream from the zero state.
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
