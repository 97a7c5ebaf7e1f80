package events

import "time"

// Envelope is the common header of every integration event. Entity fields
// are flattened next to it in the JSON body.
type Envelope struct {
	EventType string    `json:"eventType"`
	EventID   string    `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// Outbound topics.
const (
	TopicTaskEvents       = "task-events"
	TopicUserTaskEvents   = "user-task-events"
	TopicProjectUpdates   = "project-updates"
	TopicAssignmentEvents = "assignment-events"
	TopicAllEvents        = "all-events"
	TopicDeadLetter       = "dead-letter-events"
)

// Inbound topics.
const (
	TopicUserEvents         = "user-events"
	TopicProjectEvents      = "project-events"
	TopicNotificationEvents = "notification-events"
)

func InboundTopics() []string {
	return []string{TopicUserEvents, TopicProjectEvents, TopicNotificationEvents}
}

// Outbound event types.
const (
	TypeTaskCreated       = "task_created"
	TypeTaskCompleted     = "task_completed"
	TypeTaskAssigned      = "task_assigned"
	TypeTaskStatusChanged = "task_status_changed"
)

// Inbound event types.
const (
	TypeUserCreated        = "user_created"
	TypeUserUpdated        = "user_updated"
	TypeUserDeactivated    = "user_deactivated"
	TypeUserReactivated    = "user_reactivated"
	TypeUserDeleted        = "user_deleted"
	TypeProjectArchived    = "project_archived"
	TypeProjectDeleted     = "project_deleted"
	TypeNotificationSent   = "notification_sent"
	TypeNotificationFailed = "notification_failed"
)

// Message headers.
const (
	HeaderEventType     = "event-type"
	HeaderEventID       = "event-id"
	HeaderSource        = "source"
	HeaderSchemaVersion = "schema-version"
	HeaderOriginTopic   = "origin-topic"
	HeaderFailureReason = "failure-reason"
	HeaderAttempts      = "attempts"
)
