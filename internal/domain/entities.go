package domain

// StubName is the placeholder name given to workspaces and projects created
// only to satisfy a time entry's foreign key.
const StubName = "Unknown"

// Workspace represents a Toggl workspace row. IDs are assigned by Toggl.
type Workspace struct {
	ID             int64  `db:"id"`
	Name           string `db:"name"`
	OrganizationID *int64 `db:"organization_id"`
}

// Project represents a Toggl project row. IDs are assigned by Toggl.
type Project struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// RawRecord is one time entry as decoded from the Toggl API, before any
// validation. Numbers are json.Number when decoded by the toggl adapter.
type RawRecord map[string]any
