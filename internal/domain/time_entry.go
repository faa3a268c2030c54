package domain

import "time"

// TimeEntry represents a normalized Toggl time entry in the domain.
type TimeEntry struct {
	ID          int64      `db:"id"`
	Description string     `db:"description"`
	Start       time.Time  `db:"start_time"`
	End         *time.Time `db:"end_time"`
	DurationSec float64    `db:"duration"` // Negative means running in Toggl API semantics
	UserID      int64      `db:"user_id"`
	ProjectID   *int64     `db:"project_id"`
	WorkspaceID int64      `db:"workspace_id"`
}

// Running reports whether Toggl still considers the entry in progress.
func (e TimeEntry) Running() bool {
	return e.DurationSec < 0 || e.End == nil
}

// EndsBeforeStart reports whether the entry has an end timestamp earlier
// than its start.
func (e TimeEntry) EndsBeforeStart() bool {
	return e.End != nil && e.End.Before(e.Start)
}
