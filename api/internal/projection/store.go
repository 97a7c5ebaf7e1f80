package projection

import "context"

// Table stores one kind of view.
type Table[V any, F any] interface {
	Get(ctx context.Context, id string) (V, bool, error)
	// Put stores v unless a row with an equal or higher version exists.
	Put(ctx context.Context, v V) error
	Find(ctx context.Context, f F) ([]V, error)
}

type Store interface {
	Workspaces() Table[WorkspaceView, WorkspaceFilter]
	Projects() Table[ProjectView, ProjectFilter]
	Tasks() Table[TaskView, TaskFilter]
	Users() Table[UserView, UserFilter]
	// Reset drops every row; used before a full rebuild.
	Reset(ctx context.Context) error
}
