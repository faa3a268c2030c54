package ports

import (
	"context"

	"toggl-ingest/internal/domain"
)

// Source fetches one batch of raw time entries from Toggl.
type Source interface {
	FetchTimeEntries(ctx context.Context) ([]domain.RawRecord, error)
}

// StateReader answers existence questions against persisted state.
type StateReader interface {
	WorkspaceExists(ctx context.Context, id int64) (bool, error)
	ProjectExists(ctx context.Context, id int64) (bool, error)
	TimeEntryExists(ctx context.Context, id int64) (bool, error)
}

// Committer applies a staged batch atomically: all rows or none.
type Committer interface {
	Commit(ctx context.Context, batch domain.Batch) (domain.CommitResult, error)
}

// Store is the relational target of an ingestion run.
type Store interface {
	StateReader
	Committer
}
