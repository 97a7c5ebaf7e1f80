package integration

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/shared/events"
)

// Mapper holds one explicit mapping per published domain event type.
type Mapper struct {
	source        string
	schemaVersion string
}

func NewMapper(source string, schemaVersion string) Mapper {
	return Mapper{source: source, schemaVersion: schemaVersion}
}

func (m Mapper) Map(evt es.Event) ([]Message, error) {
	switch evt.Type {
	case task.EventCreated:
		return m.taskCreated(evt)
	case task.EventCompleted:
		return m.taskCompleted(evt)
	case task.EventAssigned:
		return m.taskAssigned(evt)
	case task.EventStatusChanged:
		return m.taskStatusChanged(evt)
	}
	return m.fallback(evt)
}

func (m Mapper) envelope(eventType string, evt es.Event) events.Envelope {
	return events.Envelope{
		EventType: eventType,
		EventID:   evt.EventID,
		Timestamp: evt.OccurredAt,
		Source:    m.source,
		Version:   m.schemaVersion,
	}
}

func (m Mapper) taskCreated(evt es.Event) ([]Message, error) {
	var p task.CreatedPayload
	if err := evt.Decode(&p); err != nil {
		return nil, err
	}
	body := TaskCreated{
		Envelope:       m.envelope(events.TypeTaskCreated, evt),
		TaskID:         evt.AggregateID,
		WorkspaceID:    p.WorkspaceID,
		ProjectID:      p.ProjectID,
		Title:          p.Title,
		Description:    p.Description,
		AssignedUserID: p.AssignedUserID,
		Status:         p.Status,
		Priority:       p.Priority,
		Deadline:       p.Deadline,
		Tags:           p.Tags,
		Categories:     p.Categories,
		CreatedBy:      p.CreatedBy,
		Recurring:      p.Recurrence != nil,
	}
	value, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	out := []Message{m.message(events.TopicTaskEvents, evt.AggregateID, value, body.Envelope)}
	if p.AssignedUserID != "" {
		out = append(out, m.message(events.TopicUserTaskEvents, p.AssignedUserID, value, body.Envelope))
	}
	return out, nil
}

func (m Mapper) taskCompleted(evt es.Event) ([]Message, error) {
	var p task.CompletedPayload
	if err := evt.Decode(&p); err != nil {
		return nil, err
	}
	body := TaskCompleted{
		Envelope:          m.envelope(events.TypeTaskCompleted, evt),
		TaskID:            evt.AggregateID,
		ProjectID:         p.ProjectID,
		WorkspaceID:       p.WorkspaceID,
		AssignedUserID:    p.AssignedUserID,
		CompletedBy:       p.CompletedBy,
		CompletionTime:    p.CompletedAt,
		DurationInMinutes: p.DurationInMinutes,
	}
	value, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return []Message{
		m.message(events.TopicTaskEvents, evt.AggregateID, value, body.Envelope),
		m.message(events.TopicProjectUpdates, evt.AggregateID, value, body.Envelope),
	}, nil
}

func (m Mapper) taskAssigned(evt es.Event) ([]Message, error) {
	var p task.AssignedPayload
	if err := evt.Decode(&p); err != nil {
		return nil, err
	}
	body := TaskAssigned{
		Envelope:       m.envelope(events.TypeTaskAssigned, evt),
		TaskID:         evt.AggregateID,
		ProjectID:      p.ProjectID,
		AssignedUserID: p.UserID,
		PreviousUserID: p.PreviousUserID,
		AssignedBy:     evt.ActorID,
	}
	value, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return []Message{
		m.message(events.TopicTaskEvents, evt.AggregateID, value, body.Envelope),
		m.message(events.TopicAssignmentEvents, p.UserID, value, body.Envelope),
	}, nil
}

func (m Mapper) taskStatusChanged(evt es.Event) ([]Message, error) {
	var p task.StatusChangedPayload
	if err := evt.Decode(&p); err != nil {
		return nil, err
	}
	body := TaskStatusChanged{
		Envelope:  m.envelope(events.TypeTaskStatusChanged, evt),
		TaskID:    evt.AggregateID,
		ProjectID: p.ProjectID,
		OldStatus: p.From,
		NewStatus: p.To,
	}
	value, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return []Message{m.message(events.TopicTaskEvents, evt.AggregateID, value, body.Envelope)}, nil
}

func (m Mapper) fallback(evt es.Event) ([]Message, error) {
	body := DomainEvent{
		Envelope:         m.envelope(SnakeCase(evt.Type), evt),
		AggregateType:    evt.AggregateType,
		AggregateID:      evt.AggregateID,
		AggregateVersion: evt.Version,
		ActorID:          evt.ActorID,
		Data:             evt.Payload,
	}
	value, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", evt.Type, err)
	}
	return []Message{m.message(events.TopicAllEvents, evt.AggregateID, value, body.Envelope)}, nil
}

func (m Mapper) message(topic string, key string, value []byte, env events.Envelope) Message {
	return Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Headers: map[string]string{
			events.HeaderEventType:     env.EventType,
			events.HeaderEventID:       env.EventID,
			events.HeaderSource:        env.Source,
			events.HeaderSchemaVersion: env.Version,
		},
	}
}

// SnakeCase turns an event type like WorkspaceMemberAdded into
// workspace_member_added.
func SnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
