package app

import (
	"collab-workspace-system/api/internal/dispatch"
	"collab-workspace-system/api/internal/project"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/api/internal/user"
	"collab-workspace-system/api/internal/workspace"
)

var (
	Workspaces = dispatch.Aggregate[workspace.State]{Type: workspace.AggregateType, Fold: workspace.Fold, Decide: workspace.Decide}
	Projects   = dispatch.Aggregate[project.State]{Type: project.AggregateType, Fold: project.Fold, Decide: project.Decide}
	Tasks      = dispatch.Aggregate[task.State]{Type: task.AggregateType, Fold: task.Fold, Decide: task.Decide}
	Users      = dispatch.Aggregate[user.State]{Type: user.AggregateType, Fold: user.Fold, Decide: user.Decide}
)
