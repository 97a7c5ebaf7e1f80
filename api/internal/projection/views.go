// Package projection maintains the queryable read models. Each view row is
// the folded snapshot of one aggregate, kept current by the Projector.
package projection

import (
	"slices"
	"strings"
	"time"

	"collab-workspace-system/api/internal/project"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/api/internal/user"
	"collab-workspace-system/api/internal/workspace"
)

type (
	WorkspaceView = workspace.State
	ProjectView   = project.State
	TaskView      = task.State
	UserView      = user.State
)

// row is the bookkeeping every view shares.
type row struct {
	ID        string
	Version   int64
	Deleted   bool
	CreatedAt time.Time
}

func workspaceRow(v WorkspaceView) row { return row{v.ID, v.Version, v.Deleted, v.CreatedAt} }
func projectRow(v ProjectView) row     { return row{v.ID, v.Version, v.Deleted, v.CreatedAt} }
func taskRow(v TaskView) row           { return row{v.ID, v.Version, v.Deleted, v.CreatedAt} }
func userRow(v UserView) row           { return row{v.ID, v.Version, v.Deleted, v.CreatedAt} }

// Filters combine their set fields with AND. Zero values match anything.
// Deleted rows are excluded unless IncludeDeleted is set.

type WorkspaceFilter struct {
	OwnerID        string
	MemberID       string
	Archived       *bool
	IncludeDeleted bool
}

func (f WorkspaceFilter) Match(v WorkspaceView) bool {
	return (f.IncludeDeleted || !v.Deleted) &&
		(f.OwnerID == "" || v.OwnerID == f.OwnerID) &&
		(f.MemberID == "" || slices.Contains(v.MemberIDs, f.MemberID)) &&
		(f.Archived == nil || v.Archived == *f.Archived)
}

type ProjectFilter struct {
	WorkspaceID    string
	OwnerID        string
	Status         string
	Archived       *bool
	IncludeDeleted bool
}

func (f ProjectFilter) Match(v ProjectView) bool {
	return (f.IncludeDeleted || !v.Deleted) &&
		(f.WorkspaceID == "" || v.WorkspaceID == f.WorkspaceID) &&
		(f.OwnerID == "" || v.OwnerID == f.OwnerID) &&
		(f.Status == "" || v.Status == f.Status) &&
		(f.Archived == nil || v.Archived == *f.Archived)
}

type TaskFilter struct {
	ProjectID      string
	WorkspaceID    string
	AssignedUserID string
	Status         string
	Priority       string
	RecurringOnly  bool
	IncludeDeleted bool
}

func (f TaskFilter) Match(v TaskView) bool {
	return (f.IncludeDeleted || !v.Deleted) &&
		(f.ProjectID == "" || v.ProjectID == f.ProjectID) &&
		(f.WorkspaceID == "" || v.WorkspaceID == f.WorkspaceID) &&
		(f.AssignedUserID == "" || v.AssignedUserID == f.AssignedUserID) &&
		(f.Status == "" || v.Status == f.Status) &&
		(f.Priority == "" || v.Priority == f.Priority) &&
		(!f.RecurringOnly || v.Recurrence != nil)
}

type UserFilter struct {
	Role   string
	Active *bool
	Email  string
	// NameContains matches case-insensitively.
	NameContains   string
	IncludeDeleted bool
}

func (f UserFilter) Match(v UserView) bool {
	return (f.IncludeDeleted || !v.Deleted) &&
		(f.Role == "" || v.Role == f.Role) &&
		(f.Active == nil || v.Active == *f.Active) &&
		(f.Email == "" || strings.EqualFold(v.Email, f.Email)) &&
		(f.NameContains == "" || strings.Contains(strings.ToLower(v.Name), strings.ToLower(f.NameContains)))
}
