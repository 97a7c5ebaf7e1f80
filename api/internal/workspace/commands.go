package workspace

type CreateWorkspace struct {
	WorkspaceID string
	Title       string
	Description string
	OwnerID     string
}

// UpdateWorkspace replaces the fields that are non-nil.
type UpdateWorkspace struct {
	WorkspaceID string
	Title       *string
	Description *string
}

type AddMember struct {
	WorkspaceID string
	UserID      string
}

type RemoveMember struct {
	WorkspaceID string
	UserID      string
}

type ArchiveWorkspace struct{ WorkspaceID string }

type UnarchiveWorkspace struct{ WorkspaceID string }

type DeleteWorkspace struct{ WorkspaceID string }

func (c CreateWorkspace) AggregateID() string    { return c.WorkspaceID }
func (c UpdateWorkspace) AggregateID() string    { return c.WorkspaceID }
func (c AddMember) AggregateID() string          { return c.WorkspaceID }
func (c RemoveMember) AggregateID() string       { return c.WorkspaceID }
func (c ArchiveWorkspace) AggregateID() string   { return c.WorkspaceID }
func (c UnarchiveWorkspace) AggregateID() string { return c.WorkspaceID }
func (c DeleteWorkspace) AggregateID() string    { return c.WorkspaceID }

func (CreateWorkspace) CommandName() string    { return "CreateWorkspace" }
func (UpdateWorkspace) CommandName() string    { return "UpdateWorkspace" }
func (AddMember) CommandName() string          { return "AddMember" }
func (RemoveMember) CommandName() string       { return "RemoveMember" }
func (ArchiveWorkspace) CommandName() string   { return "ArchiveWorkspace" }
func (UnarchiveWorkspace) CommandName() string { return "UnarchiveWorkspace" }
func (DeleteWorkspace) CommandName() string    { return "DeleteWorkspace" }
