package reconcile

import (
	"context"
	"fmt"

	"toggl-ingest/internal/domain"
	"toggl-ingest/internal/ports"
)

// Kind is the decision taken for one raw record.
type Kind int

const (
	Insert Kind = iota + 1
	Skip
	Fail
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Skip:
		return "skip"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SkipReason explains a Skip.
type SkipReason string

const (
	// SkipExists: the id is already persisted. Existing rows are never updated.
	SkipExists SkipReason = "exists"
	// SkipDuplicate: the id was already staged earlier in the same batch.
	SkipDuplicate SkipReason = "duplicate_in_batch"
	// SkipRunning: the entry is still in progress; a later run picks it up.
	SkipRunning SkipReason = "running"
)

// Action is the staged decision for one record.
type Action struct {
	Kind   Kind
	Index  int
	Entry  domain.TimeEntry // zero for Fail
	Reason SkipReason       // set for Skip
	Err    error            // *domain.ParseError for Fail

	// Flagged marks an Insert whose end precedes its start. Such entries
	// are stored as received and reported.
	Flagged bool
}

// Reconciler decides insert, skip, or fail for each raw record.
type Reconciler struct {
	state ports.StateReader
	stage *Stage
}

func NewReconciler(state ports.StateReader, stage *Stage) *Reconciler {
	return &Reconciler{state: state, stage: stage}
}

// Reconcile parses raw and decides its action from persisted state and the
// stage. It does not modify the stage. A malformed record yields a Fail
// action, not an error; the returned error is reserved for store failures,
// which abort the run.
func (r *Reconciler) Reconcile(ctx context.Context, index int, raw domain.RawRecord) (Action, error) {
	e, err := ParseRecord(index, raw)
	if err != nil {
		return Action{Kind: Fail, Index: index, Err: err}, nil
	}
	a := Action{Index: index, Entry: e}

	switch {
	case e.Running():
		a.Kind, a.Reason = Skip, SkipRunning
		return a, nil
	case r.stage.HasEntry(e.ID):
		a.Kind, a.Reason = Skip, SkipDuplicate
		return a, nil
	}

	exists, err := r.state.TimeEntryExists(ctx, e.ID)
	if err != nil {
		return Action{}, fmt.Errorf("checking time entry %d: %w", e.ID, err)
	}
	if exists {
		a.Kind, a.Reason = Skip, SkipExists
		return a, nil
	}

	a.Kind = Insert
	a.Flagged = e.EndsBeforeStart()
	return a, nil
}
