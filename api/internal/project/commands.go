package project

type CreateProject struct {
	ProjectID   string
	WorkspaceID string
	Name        string
	Description string
	OwnerID     string
	// Status defaults to planning.
	Status string
}

type UpdateProject struct {
	ProjectID   string
	Name        *string
	Description *string
}

type ChangeProjectStatus struct {
	ProjectID string
	Status    string
}

type ChangeProjectOwner struct {
	ProjectID string
	OwnerID   string
}

type ArchiveProject struct {
	ProjectID string
	Reason    string
}

type DeleteProject struct {
	ProjectID string
	Reason    string
}

func (c CreateProject) AggregateID() string       { return c.ProjectID }
func (c UpdateProject) AggregateID() string       { return c.ProjectID }
func (c ChangeProjectStatus) AggregateID() string { return c.ProjectID }
func (c ChangeProjectOwner) AggregateID() string  { return c.ProjectID }
func (c ArchiveProject) AggregateID() string      { return c.ProjectID }
func (c DeleteProject) AggregateID() string       { return c.ProjectID }

func (CreateProject) CommandName() string       { return "CreateProject" }
func (UpdateProject) CommandName() string       { return "UpdateProject" }
func (ChangeProjectStatus) CommandName() string { return "ChangeProjectStatus" }
func (ChangeProjectOwner) CommandName() string  { return "ChangeProjectOwner" }
func (ArchiveProject) CommandName() string      { return "ArchiveProject" }
func (DeleteProject) CommandName() string       { return "DeleteProject" }
