// Package app is the command side of the service: typed commands with the
// cross-aggregate checks a single aggregate cannot make, plus the runtime
// that wires stores, subscribers and transports together.
package app

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"collab-workspace-system/api/internal/dispatch"
	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/project"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/api/internal/user"
	"collab-workspace-system/api/internal/workspace"
	"collab-workspace-system/shared/actorx"
)

type Commands struct {
	d     *dispatch.Dispatcher
	newID func() string
}

func NewCommands(d *dispatch.Dispatcher) *Commands {
	return &Commands{d: d, newID: uuid.NewString}
}

func run[S any](ctx context.Context, c *Commands, agg dispatch.Aggregate[S], cmd es.Command) (S, error) {
	res, err := dispatch.Execute(ctx, c.d, agg, cmd)
	return res.State, err
}

func (c *Commands) idOr(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return c.newID()
}

// actorOr falls back to the calling actor when v is blank.
func actorOr(ctx context.Context, v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	if a, ok := actorx.FromContext(ctx); ok {
		return a.ID
	}
	return ""
}

// Workspaces

func (c *Commands) CreateWorkspace(ctx context.Context, cmd workspace.CreateWorkspace) (workspace.State, error) {
	cmd.WorkspaceID = c.idOr(cmd.WorkspaceID)
	cmd.OwnerID = actorOr(ctx, cmd.OwnerID)
	return run(ctx, c, Workspaces, cmd)
}

func (c *Commands) UpdateWorkspace(ctx context.Context, cmd workspace.UpdateWorkspace) (workspace.State, error) {
	return run(ctx, c, Workspaces, cmd)
}

func (c *Commands) AddMember(ctx context.Context, cmd workspace.AddMember) (workspace.State, error) {
	return run(ctx, c, Workspaces, cmd)
}

func (c *Commands) RemoveMember(ctx context.Context, cmd workspace.RemoveMember) (workspace.State, error) {
	return run(ctx, c, Workspaces, cmd)
}

func (c *Commands) ArchiveWorkspace(ctx context.Context, id string) (workspace.State, error) {
	return run(ctx, c, Workspaces, workspace.ArchiveWorkspace{WorkspaceID: id})
}

func (c *Commands) UnarchiveWorkspace(ctx context.Context, id string) (workspace.State, error) {
	return run(ctx, c, Workspaces, workspace.UnarchiveWorkspace{WorkspaceID: id})
}

func (c *Commands) DeleteWorkspace(ctx context.Context, id string) (workspace.State, error) {
	return run(ctx, c, Workspaces, workspace.DeleteWorkspace{WorkspaceID: id})
}

// Projects

// CreateProject requires a live workspace. The check reads the event
// store, not a view, so it never sees stale data.
func (c *Commands) CreateProject(ctx context.Context, cmd project.CreateProject) (project.State, error) {
	workspaceID := strings.TrimSpace(cmd.WorkspaceID)
	if workspaceID == "" {
		return project.State{}, es.Validation("workspace id is required")
	}
	ws, _, err := dispatch.Load(ctx, c.d.Store(), Workspaces, workspaceID)
	if err != nil {
		return project.State{}, err
	}
	switch {
	case !ws.Exists():
		return project.State{}, es.NotFound(workspace.AggregateType, cmd.WorkspaceID)
	case ws.Deleted:
		return project.State{}, es.AlreadyDeleted(workspace.AggregateType, ws.ID)
	case ws.Archived:
		return project.State{}, es.InvalidTransition("workspace %s is archived", ws.ID)
	}
	cmd.ProjectID = c.idOr(cmd.ProjectID)
	cmd.OwnerID = actorOr(ctx, cmd.OwnerID)
	return run(ctx, c, Projects, cmd)
}

func (c *Commands) UpdateProject(ctx context.Context, cmd project.UpdateProject) (project.State, error) {
	return run(ctx, c, Projects, cmd)
}

func (c *Commands) ChangeProjectStatus(ctx context.Context, cmd project.ChangeProjectStatus) (project.State, error) {
	return run(ctx, c, Projects, cmd)
}

func (c *Commands) ChangeProjectOwner(ctx context.Context, cmd project.ChangeProjectOwner) (project.State, error) {
	return run(ctx, c, Projects, cmd)
}

func (c *Commands) ArchiveProject(ctx context.Context, cmd project.ArchiveProject) (project.State, error) {
	return run(ctx, c, Projects, cmd)
}

func (c *Commands) DeleteProject(ctx context.Context, cmd project.DeleteProject) (project.State, error) {
	return run(ctx, c, Projects, cmd)
}

// Tasks

// CreateTask requires a live project and takes the workspace from it.
func (c *Commands) CreateTask(ctx context.Context, cmd task.CreateTask) (task.State, error) {
	projectID := strings.TrimSpace(cmd.ProjectID)
	if projectID == "" {
		return task.State{}, es.Validation("project id is required")
	}
	p, _, err := dispatch.Load(ctx, c.d.Store(), Projects, projectID)
	if err != nil {
		return task.State{}, err
	}
	switch {
	case !p.Exists():
		return task.State{}, es.NotFound(project.AggregateType, projectID)
	case p.Deleted:
		return task.State{}, es.AlreadyDeleted(project.AggregateType, projectID)
	case p.Archived:
		return task.State{}, es.InvalidTransition("project %s is archived", projectID)
	}
	if ws := strings.TrimSpace(cmd.WorkspaceID); ws != "" && ws != p.WorkspaceID {
		return task.State{}, es.Validation("project %s belongs to workspace %s, not %s", projectID, p.WorkspaceID, ws)
	}
	cmd.WorkspaceID = p.WorkspaceID
	cmd.TaskID = c.idOr(cmd.TaskID)
	cmd.CreatedBy = actorOr(ctx, cmd.CreatedBy)
	return run(ctx, c, Tasks, cmd)
}

func (c *Commands) UpdateTaskDetails(ctx context.Context, cmd task.UpdateTaskDetails) (task.State, error) {
	return run(ctx, c, Tasks, cmd)
}

func (c *Commands) AssignTask(ctx context.Context, cmd task.AssignTask) (task.State, error) {
	return run(ctx, c, Tasks, cmd)
}

func (c *Commands) UnassignTask(ctx context.Context, id string) (task.State, error) {
	return run(ctx, c, Tasks, task.UnassignTask{TaskID: id})
}

func (c *Commands) ChangeTaskStatus(ctx context.Context, cmd task.ChangeTaskStatus) (task.State, error) {
	return run(ctx, c, Tasks, cmd)
}

func (c *Commands) CompleteTask(ctx context.Context, cmd task.CompleteTask) (task.State, error) {
	cmd.CompletedBy = actorOr(ctx, cmd.CompletedBy)
	return run(ctx, c, Tasks, cmd)
}

func (c *Commands) SetRecurrence(ctx context.Context, cmd task.SetRecurrence) (task.State, error) {
	return run(ctx, c, Tasks, cmd)
}

func (c *Commands) RecordOccurrence(ctx context.Context, cmd task.RecordOccurrence) (task.State, error) {
	return run(ctx, c, Tasks, cmd)
}

func (c *Commands) AddComment(ctx context.Context, cmd task.AddComment) (task.State, error) {
	cmd.CommentID = c.idOr(cmd.CommentID)
	cmd.AuthorID = actorOr(ctx, cmd.AuthorID)
	return run(ctx, c, Tasks, cmd)
}

func (c *Commands) AddAttachment(ctx context.Context, cmd task.AddAttachment) (task.State, error) {
	cmd.AttachmentID = c.idOr(cmd.AttachmentID)
	return run(ctx, c, Tasks, cmd)
}

func (c *Commands) RemoveAttachment(ctx context.Context, cmd task.RemoveAttachment) (task.State, error) {
	return run(ctx, c, Tasks, cmd)
}

func (c *Commands) UpdateTaskLabels(ctx context.Context, cmd task.UpdateTaskLabels) (task.State, error) {
	return run(ctx, c, Tasks, cmd)
}

func (c *Commands) DeleteTask(ctx context.Context, id string) (task.State, error) {
	return run(ctx, c, Tasks, task.DeleteTask{TaskID: id})
}

// Users

func (c *Commands) RegisterUser(ctx context.Context, cmd user.RegisterUser) (user.State, error) {
	return run(ctx, c, Users, cmd)
}

func (c *Commands) UpdateUserProfile(ctx context.Context, cmd user.UpdateUserProfile) (user.State, error) {
	return run(ctx, c, Users, cmd)
}

func (c *Commands) DeactivateUser(ctx context.Context, cmd user.DeactivateUser) (user.State, error) {
	return run(ctx, c, Users, cmd)
}

func (c *Commands) ReactivateUser(ctx context.Context, id string) (user.State, error) {
	return run(ctx, c, Users, user.ReactivateUser{UserID: id})
}

func (c *Commands) DeleteUser(ctx context.Context, cmd user.DeleteUser) (user.State, error) {
	return run(ctx, c, Users, cmd)
}
