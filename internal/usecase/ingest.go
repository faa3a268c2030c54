package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"toggl-ingest/internal/ports"
	"toggl-ingest/internal/reconcile"
)

// Phase is a state of one ingestion run.
type Phase string

const (
	PhaseFetching    Phase = "fetching"
	PhaseReconciling Phase = "reconciling"
	PhaseResolving   Phase = "resolving"
	PhaseCommitting  Phase = "committing"
	PhaseCommitted   Phase = "committed"
	PhaseAborted     Phase = "aborted"
)

// Report summarizes one ingestion run.
type Report struct {
	Phase             Phase
	Fetched           int
	Inserted          int
	Skipped           int
	Failed            int
	Flagged           int // inserted entries whose end precedes their start
	WorkspacesCreated int
	ProjectsCreated   int

	// ParseErrors aggregates the per-record failures; nil when Failed is 0.
	ParseErrors *multierror.Error
}

func (r Report) String() string {
	return fmt.Sprintf("%d records ingested, %d skipped, %d failed to parse", r.Inserted, r.Skipped, r.Failed)
}

// IngestUseCase coordinates fetching from Toggl and committing to a Store.
type IngestUseCase struct {
	Log    *slog.Logger
	Source ports.Source
	Store  ports.Store
}

// Run performs one ingestion: fetch, reconcile every record, resolve the
// parent references of the entries to insert, then commit the staged writes
// atomically. Malformed records are counted
// in the report and never abort the run. Any other failure aborts the run
// with nothing written and is returned alongside a report in PhaseAborted.
func (uc *IngestUseCase) Run(ctx context.Context) (Report, error) {
	rep := Report{Phase: PhaseFetching}
	if uc.Source == nil || uc.Store == nil {
		return uc.abort(rep, errors.New("usecase not initialized: missing dependencies"))
	}
	uc.Log.Info("fetching time entries")

	records, err := uc.Source.FetchTimeEntries(ctx)
	if err != nil {
		return uc.abort(rep, err)
	}
	rep.Fetched = len(records)
	uc.Log.Info("fetched time entries", slog.Int("count", rep.Fetched))

	rep.Phase = PhaseReconciling
	stage := reconcile.NewStage()
	reconciler := reconcile.NewReconciler(uc.Store, stage)
	resolver := reconcile.NewResolver(uc.Store, stage, uc.Log)

	var inserts []reconcile.Action
	for i, raw := range records {
		a, err := reconciler.Reconcile(ctx, i, raw)
		if err != nil {
			return uc.abort(rep, err)
		}
		switch a.Kind {
		case reconcile.Fail:
			rep.Failed++
			rep.ParseErrors = multierror.Append(rep.ParseErrors, a.Err)
			uc.Log.Warn("dropping malformed record", slog.Int("index", i), slog.String("error", a.Err.Error()))
			continue
		case reconcile.Skip:
			rep.Skipped++
			uc.Log.Debug("skipping time entry", slog.Int64("id", a.Entry.ID), slog.String("reason", string(a.Reason)))
			continue
		}

		if a.Flagged {
			rep.Flagged++
			uc.Log.Warn("time entry ends before it starts",
				slog.Int64("id", a.Entry.ID),
				slog.Time("start", a.Entry.Start),
				slog.Time("end", *a.Entry.End),
			)
		}
		stage.StageEntry(a.Entry)
		inserts = append(inserts, a)
		rep.Inserted++
		uc.Log.Debug("staged time entry", slog.Int64("id", a.Entry.ID))
	}

	rep.Phase = PhaseResolving
	for _, a := range inserts {
		res, err := resolver.Ensure(ctx, a.Entry.WorkspaceID, a.Entry.ProjectID)
		if err != nil {
			return uc.abort(rep, err)
		}
		if res.WorkspaceCreated {
			rep.WorkspacesCreated++
		}
		if res.ProjectCreated {
			rep.ProjectsCreated++
		}
	}

	rep.Phase = PhaseCommitting
	batch := stage.Batch()
	uc.Log.Info("committing",
		slog.Int("entries", len(batch.Entries)),
		slog.Int("workspaces", len(batch.Workspaces)),
		slog.Int("projects", len(batch.Projects)),
	)
	if _, err := uc.Store.Commit(ctx, batch); err != nil {
		return uc.abort(rep, err)
	}

	rep.Phase = PhaseCommitted
	uc.Log.Info("ingestion committed",
		slog.Int("inserted", rep.Inserted),
		slog.Int("skipped", rep.Skipped),
		slog.Int("failed", rep.Failed),
		slog.Int("flagged", rep.Flagged),
	)
	return rep, nil
}

// abort ends the run in PhaseAborted. Nothing from an aborted run is durable,
// so the write counters are cleared.
func (uc *IngestUseCase) abort(rep Report, err error) (Report, error) {
	uc.Log.Error("ingestion aborted", slog.String("phase", string(rep.Phase)), slog.String("error", err.Error()))
	rep.Phase = PhaseAborted
	rep.Inserted, rep.Flagged, rep.WorkspacesCreated, rep.ProjectsCreated = 0, 0, 0, 0
	return rep, err
}
