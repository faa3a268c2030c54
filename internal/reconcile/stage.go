package reconcile

import "toggl-ingest/internal/domain"

type refState uint8

const (
	refUnknown refState = iota
	refPersisted
	refStaged
)

// refSet caches what one run has learned about a parent table: ids seen in
// durable storage and ids staged as stubs, in staging order.
type refSet struct {
	state  map[int64]refState
	staged []int64
}

func newRefSet() refSet {
	return refSet{state: make(map[int64]refState)}
}

func (r *refSet) lookup(id int64) refState { return r.state[id] }

func (r *refSet) markPersisted(id int64) { r.state[id] = refPersisted }

// stage records id as a stub to insert. It reports false if id was already
// known, so a stub is never staged twice.
func (r *refSet) stage(id int64) bool {
	if r.state[id] != refUnknown {
		return false
	}
	r.state[id] = refStaged
	r.staged = append(r.staged, id)
	return true
}

// Stage is the in-memory arena for one ingestion run. It holds every write
// proposed so far and doubles as the cache the Resolver and Reconciler
// consult before touching durable storage. A Stage is not safe for
// concurrent use; each run owns its own.
type Stage struct {
	workspaces refSet
	projects   refSet
	entryIDs   map[int64]struct{}
	entries    []domain.TimeEntry
}

// NewStage returns an empty stage.
func NewStage() *Stage {
	return &Stage{
		workspaces: newRefSet(),
		projects:   newRefSet(),
		entryIDs:   make(map[int64]struct{}),
	}
}

// HasEntry reports whether an entry with id is already staged for insertion.
func (s *Stage) HasEntry(id int64) bool {
	_, ok := s.entryIDs[id]
	return ok
}

// StageEntry adds e to the insert set. It reports false, and stages nothing,
// when an entry with the same id is already staged.
func (s *Stage) StageEntry(e domain.TimeEntry) bool {
	if s.HasEntry(e.ID) {
		return false
	}
	s.entryIDs[e.ID] = struct{}{}
	s.entries = append(s.entries, e)
	return true
}

// Batch returns the staged writes in commit order.
func (s *Stage) Batch() domain.Batch {
	var b domain.Batch
	for _, id := range s.workspaces.staged {
		b.Workspaces = append(b.Workspaces, domain.Workspace{ID: id, Name: domain.StubName})
	}
	for _, id := range s.projects.staged {
		b.Projects = append(b.Projects, domain.Project{ID: id, Name: domain.StubName})
	}
	b.Entries = append(b.Entries, s.entries...)
	return b
}
