package project

import "collab-workspace-system/api/internal/es"

func Fold(state State, evt es.Event) (State, error) {
	switch evt.Type {
	case EventCreated:
		var p CreatedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.ID = evt.AggregateID
		state.WorkspaceID = p.WorkspaceID
		state.Name = p.Name
		state.Description = p.Description
		state.OwnerID = p.OwnerID
		state.Status = p.Status
		state.CreatedAt = evt.OccurredAt
	case EventUpdated:
		var p UpdatedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.Name = p.Name
		state.Description = p.Description
	case EventStatusChanged:
		var p StatusChangedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.Status = p.To
	case EventOwnerChanged:
		var p OwnerChangedPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.OwnerID = p.To
	case EventArchived:
		state.Archived = true
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
