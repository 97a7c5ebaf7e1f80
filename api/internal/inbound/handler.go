package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/project"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/api/internal/user"
	"collab-workspace-system/shared/actorx"
	"collab-workspace-system/shared/logx"
)

// Commands is the part of app.Commands the handler drives.
type Commands interface {
	RegisterUser(ctx context.Context, cmd user.RegisterUser) (user.State, error)
	UpdateUserProfile(ctx context.Context, cmd user.UpdateUserProfile) (user.State, error)
	DeactivateUser(ctx context.Context, cmd user.DeactivateUser) (user.State, error)
	ReactivateUser(ctx context.Context, id string) (user.State, error)
	DeleteUser(ctx context.Context, cmd user.DeleteUser) (user.State, error)
	ArchiveProject(ctx context.Context, cmd project.ArchiveProject) (project.State, error)
	DeleteProject(ctx context.Context, cmd project.DeleteProject) (project.State, error)
	AddComment(ctx context.Context, cmd task.AddComment) (task.State, error)
}

type Handler struct {
	commands Commands
	logger   logx.Logger
}

func NewHandler(commands Commands, logger logx.Logger) *Handler {
	return &Handler{commands: commands, logger: logger}
}

// Handle applies evt. Redelivered events whose effect is already in place
// succeed without emitting anything.
func (h *Handler) Handle(ctx context.Context, evt Event) error {
	head := evt.Header()
	source := strings.TrimSpace(head.Source)
	if source == "" {
		source = "inbound"
	}
	ctx = actorx.WithSystem(ctx, source)

	var err error
	switch v := evt.(type) {
	case UserCreated:
		_, err = h.commands.RegisterUser(ctx, user.RegisterUser{UserID: v.UserID, Email: v.Email, Name: v.Name, Role: v.Role})
		if errors.Is(err, es.ErrAlreadyExists) {
			_, err = h.commands.UpdateUserProfile(ctx, user.UpdateUserProfile{UserID: v.UserID, Email: &v.Email, Name: &v.Name, Role: &v.Role})
		}
	case UserUpdated:
		_, err = h.commands.UpdateUserProfile(ctx, user.UpdateUserProfile{UserID: v.UserID, Email: v.Email, Name: v.Name, Role: v.Role})
	case UserDeactivated:
		_, err = h.commands.DeactivateUser(ctx, user.DeactivateUser{UserID: v.UserID, Reason: v.Reason})
	case UserReactivated:
		_, err = h.commands.ReactivateUser(ctx, v.UserID)
	case UserDeleted:
		_, err = h.commands.DeleteUser(ctx, user.DeleteUser{UserID: v.UserID, Reason: v.Reason})
	case ProjectArchived:
		_, err = h.commands.ArchiveProject(ctx, project.ArchiveProject{ProjectID: v.ProjectID, Reason: v.Reason})
		if errors.Is(err, es.ErrInvalidTransition) {
			err = nil
		}
	case ProjectDeleted:
		_, err = h.commands.DeleteProject(ctx, project.DeleteProject{ProjectID: v.ProjectID, Reason: v.Reason})
	case NotificationFailed:
		if v.TaskID == "" {
			return nil
		}
		_, err = h.commands.AddComment(ctx, task.AddComment{
			TaskID:   v.TaskID,
			AuthorID: actorx.SystemID,
			Content:  notificationNote(v),
		})
	case NotificationSent:
		h.logger.Debug(ctx, "notification_sent", "notification delivered",
			slog.String("notification_id", v.NotificationID),
			slog.String("task_id", v.TaskID),
		)
	case Unknown:
		h.logger.Debug(ctx, "inbound_ignored", "unhandled event type",
			slog.String("topic", v.Topic),
			slog.String("event_type", head.EventType),
		)
	default:
		return es.ConsumeFailure(fmt.Sprintf("no handler for %T", evt), nil)
	}

	if errors.Is(err, es.ErrAlreadyDeleted) {
		return nil
	}
	return err
}

func notificationNote(v NotificationFailed) string {
	var b strings.Builder
	b.WriteString("Notification")
	if v.Channel != "" {
		b.WriteString(" via " + v.Channel)
	}
	if v.UserID != "" {
		b.WriteString(" to " + v.UserID)
	}
	b.WriteString(" failed")
	if v.Reason != "" {
		b.WriteString(": " + v.Reason)
	}
	return b.String()
}
