// Package inbound consumes events published by the user, project and
// notification services and turns them into commands.
package inbound

import (
	"encoding/json"
	"slices"
	"strings"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/shared/events"
)

// Event is one of the variants below. The set is closed.
type Event interface {
	Header() events.Envelope
	inbound()
}

type base struct {
	events.Envelope
}

func (b base) Header() events.Envelope { return b.Envelope }
func (base) inbound()                  {}

type UserCreated struct {
	base
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// UserUpdated carries only the fields that changed.
type UserUpdated struct {
	base
	UserID string  `json:"userId"`
	Email  *string `json:"email"`
	Name   *string `json:"name"`
	Role   *string `json:"role"`
}

type UserDeactivated struct {
	base
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

type UserReactivated struct {
	base
	UserID string `json:"userId"`
}

type UserDeleted struct {
	base
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

type ProjectArchived struct {
	base
	ProjectID string `json:"projectId"`
	Reason    string `json:"reason"`
}

type ProjectDeleted struct {
	base
	ProjectID string `json:"projectId"`
	Reason    string `json:"reason"`
}

type NotificationSent struct {
	base
	NotificationID string `json:"notificationId"`
	TaskID         string `json:"taskId"`
	UserID         string `json:"userId"`
	Channel        string `json:"channel"`
}

type NotificationFailed struct {
	base
	NotificationID string `json:"notificationId"`
	TaskID         string `json:"taskId"`
	UserID         string `json:"userId"`
	Channel        string `json:"channel"`
	Reason         string `json:"reason"`
}

// Unknown is any event type this service does not handle.
type Unknown struct {
	base
	Topic string
}

var families = map[string][]string{
	events.TopicUserEvents: {
		events.TypeUserCreated, events.TypeUserUpdated, events.TypeUserDeactivated,
		events.TypeUserReactivated, events.TypeUserDeleted,
	},
	events.TopicProjectEvents:      {events.TypeProjectArchived, events.TypeProjectDeleted},
	events.TopicNotificationEvents: {events.TypeNotificationSent, events.TypeNotificationFailed},
}

// Decode parses payload into its variant. An event type that does not
// belong to topic's family decodes as Unknown. Malformed payloads and
// missing identifiers fail with CONSUME_FAILURE.
func Decode(topic string, payload []byte) (Event, error) {
	var head events.Envelope
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, es.ConsumeFailure("malformed payload", err)
	}
	if strings.TrimSpace(head.EventType) == "" {
		return nil, es.ConsumeFailure("eventType is required", nil)
	}
	if !inFamily(topic, head.EventType) {
		return Unknown{base: base{head}, Topic: topic}, nil
	}

	var (
		evt Event
		id  string
		err error
	)
	switch head.EventType {
	case events.TypeUserCreated:
		var v UserCreated
		err = json.Unmarshal(payload, &v)
		evt, id = v, v.UserID
	case events.TypeUserUpdated:
		var v UserUpdated
		err = json.Unmarshal(payload, &v)
		evt, id = v, v.UserID
	case events.TypeUserDeactivated:
		var v UserDeactivated
		err = json.Unmarshal(payload, &v)
		evt, id = v, v.UserID
	case events.TypeUserReactivated:
		var v UserReactivated
		err = json.Unmarshal(payload, &v)
		evt, id = v, v.UserID
	case events.TypeUserDeleted:
		var v UserDeleted
		err = json.Unmarshal(payload, &v)
		evt, id = v, v.UserID
	case events.TypeProjectArchived:
		var v ProjectArchived
		err = json.Unmarshal(payload, &v)
		evt, id = v, v.ProjectID
	case events.TypeProjectDeleted:
		var v ProjectDeleted
		err = json.Unmarshal(payload, &v)
		evt, id = v, v.ProjectID
	case events.TypeNotificationSent:
		var v NotificationSent
		err = json.Unmarshal(payload, &v)
		evt, id = v, v.NotificationID
	case events.TypeNotificationFailed:
		var v NotificationFailed
		err = json.Unmarshal(payload, &v)
		evt, id = v, v.NotificationID
	}
	if err != nil {
		return nil, es.ConsumeFailure("decode "+head.EventType, err)
	}
	if strings.TrimSpace(id) == "" {
		return nil, es.ConsumeFailure(head.EventType+": entity id is required", nil)
	}
	return evt, nil
}

func inFamily(topic string, eventType string) bool {
	if topic == "" {
		for _, types := range families {
			if slices.Contains(types, eventType) {
				return true
			}
		}
		return false
	}
	return slices.Contains(families[topic], eventType)
}
