package workflow

import "strings"

const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

const (
	ProjectStatusPlanning   = "planning"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusCancelled  = "cancelled"
)

// Kinds of task status transition. Completion is its own command and
// records who completed the task and when, so it is not reachable
// through a plain status change.
const (
	TransitionStatusChange = "status_change"
	TransitionComplete     = "complete"
)

var taskTransitions = map[string]map[string]string{
	TaskStatusPending: {
		TaskStatusInProgress: TransitionStatusChange,
		TaskStatusCancelled:  TransitionStatusChange,
		TaskStatusCompleted:  TransitionComplete,
	},
	TaskStatusInProgress: {
		TaskStatusPending:   TransitionStatusChange,
		TaskStatusCancelled: TransitionStatusChange,
		TaskStatusCompleted: TransitionComplete,
	},
}

func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	s = strings.ReplaceAll(s, "-", "_")
	switch s {
	case "inprogress":
		return TaskStatusInProgress
	case "canceled":
		return TaskStatusCancelled
	}
	return s
}

func CanTransition(fromStatus string, toStatus string) bool {
	return TransitionKind(fromStatus, toStatus) != ""
}

// TransitionKind reports how fromStatus may move to toStatus, or "" when
// the move is not allowed.
func TransitionKind(fromStatus string, toStatus string) string {
	next := taskTransitions[NormalizeStatus(fromStatus)]
	if next == nil {
		return ""
	}
	return next[NormalizeStatus(toStatus)]
}

func IsTerminal(status string) bool {
	s := NormalizeStatus(status)
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

func ValidTaskStatus(status string) bool {
	switch NormalizeStatus(status) {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

func ValidProjectStatus(status string) bool {
	switch NormalizeStatus(status) {
	case ProjectStatusPlanning, ProjectStatusInProgress, ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

func AllTaskStatuses() []string {
	return []string{
		TaskStatusPending,
		TaskStatusInProgress,
		TaskStatusCompleted,
		TaskStatusCancelled,
	}
}

func AllProjectStatuses() []string {
	return []string{
		ProjectStatusPlanning,
		ProjectStatusInProgress,
		ProjectStatusCompleted,
		ProjectStatusCancelled,
	}
}
