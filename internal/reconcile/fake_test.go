package reconcile

import (
	"context"
	"io"
	"log/slog"
)

// memState is an in-memory ports.StateReader that counts lookups.
type memState struct {
	workspaces map[int64]bool
	projects   map[int64]bool
	entries    map[int64]bool
	err        error
	calls      int
}

func newMemState() *memState {
	return &memState{
		workspaces: map[int64]bool{},
		projects:   map[int64]bool{},
		entries:    map[int64]bool{},
	}
}

func (m *memState) lookup(set map[int64]bool, id int64) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	return set[id], nil
}

func (m *memState) WorkspaceExists(_ context.Context, id int64) (bool, error) {
	return m.lookup(m.workspaces, id)
}

func (m *memState) ProjectExists(_ context.Context, id int64) (bool, error) {
	return m.lookup(m.projects, id)
}

func (m *memState) TimeEntryExists(_ context.Context, id int64) (bool, error) {
	return m.lookup(m.entries, id)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
