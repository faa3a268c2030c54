package domain

// Batch holds every write staged by one ingestion run. Stubs are applied
// before entries so foreign keys resolve inside the same transaction.
type Batch struct {
	Workspaces []Workspace
	Projects   []Project
	Entries    []TimeEntry
}

// Empty reports whether there is nothing to commit.
func (b Batch) Empty() bool {
	return len(b.Workspaces) == 0 && len(b.Projects) == 0 && len(b.Entries) == 0
}

// CommitResult counts rows written by a successful commit.
type CommitResult struct {
	WorkspacesCreated int
	ProjectsCreated   int
	EntriesInserted   int
}
