package projection

import (
	"context"
	"strings"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/project"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/api/internal/user"
	"collab-workspace-system/api/internal/workspace"
)

// Queries is the read side. Single-row lookups report NOT_FOUND for
// missing and deleted rows; list queries return an empty slice.
type Queries struct {
	store Store
}

func NewQueries(store Store) *Queries {
	return &Queries{store: store}
}

func findOne[V any, F any](ctx context.Context, table Table[V, F], meta func(V) row, kind string, id string) (V, error) {
	v, ok, err := table.Get(ctx, id)
	if err != nil {
		return v, err
	}
	if !ok || meta(v).Deleted {
		var zero V
		return zero, es.NotFound(kind, id)
	}
	return v, nil
}

func (q *Queries) FindWorkspaceByID(ctx context.Context, id string) (WorkspaceView, error) {
	return findOne(ctx, q.store.Workspaces(), workspaceRow, workspace.AggregateType, id)
}

func (q *Queries) FindAllWorkspaces(ctx context.Context, f WorkspaceFilter) ([]WorkspaceView, error) {
	return q.store.Workspaces().Find(ctx, f)
}

func (q *Queries) FindProjectByID(ctx context.Context, id string) (ProjectView, error) {
	return findOne(ctx, q.store.Projects(), projectRow, project.AggregateType, id)
}

func (q *Queries) FindProjectsByWorkspace(ctx context.Context, workspaceID string, f ProjectFilter) ([]ProjectView, error) {
	f.WorkspaceID = workspaceID
	return q.store.Projects().Find(ctx, f)
}

func (q *Queries) FindTaskByID(ctx context.Context, id string) (TaskView, error) {
	return findOne(ctx, q.store.Tasks(), taskRow, task.AggregateType, id)
}

func (q *Queries) FindTasksByProject(ctx context.Context, projectID string, f TaskFilter) ([]TaskView, error) {
	f.ProjectID = projectID
	return q.store.Tasks().Find(ctx, f)
}

func (q *Queries) FindTasks(ctx context.Context, f TaskFilter) ([]TaskView, error) {
	return q.store.Tasks().Find(ctx, f)
}

// FindRecurringTasks lists live tasks that carry a recurrence rule.
func (q *Queries) FindRecurringTasks(ctx context.Context) ([]TaskView, error) {
	return q.store.Tasks().Find(ctx, TaskFilter{RecurringOnly: true})
}

func (q *Queries) FindUserByID(ctx context.Context, id string) (UserView, error) {
	return findOne(ctx, q.store.Users(), userRow, user.AggregateType, id)
}

func (q *Queries) FindUserByEmail(ctx context.Context, email string) (UserView, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return UserView{}, es.Validation("email is required")
	}
	users, err := q.store.Users().Find(ctx, UserFilter{Email: email})
	if err != nil {
		return UserView{}, err
	}
	if len(users) == 0 {
		return UserView{}, es.NotFound(user.AggregateType, email)
	}
	return users[0], nil
}

func (q *Queries) FindUsers(ctx context.Context, f UserFilter) ([]UserView, error) {
	return q.store.Users().Find(ctx, f)
}
