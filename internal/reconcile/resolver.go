package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"toggl-ingest/internal/ports"
)

// Resolution is the outcome of resolving one record's parent references.
type Resolution struct {
	WorkspaceID      int64
	ProjectID        *int64
	WorkspaceCreated bool // a workspace stub was staged by this call
	ProjectCreated   bool // a project stub was staged by this call
}

// Created reports whether any stub was staged.
func (r Resolution) Created() bool { return r.WorkspaceCreated || r.ProjectCreated }

// Resolver guarantees that the workspace and project a time entry points
// at will exist once the stage is committed.
type Resolver struct {
	state ports.StateReader
	stage *Stage
	log   *slog.Logger
}

func NewResolver(state ports.StateReader, stage *Stage, log *slog.Logger) *Resolver {
	return &Resolver{state: state, stage: stage, log: log}
}

// Ensure resolves workspaceID and, when non-nil, projectID. Ids are checked
// against the stage first and durable storage second; unknown ids are
// staged as stubs named "Unknown". Calling Ensure repeatedly with the same
// ids stages each stub at most once.
func (r *Resolver) Ensure(ctx context.Context, workspaceID int64, projectID *int64) (Resolution, error) {
	res := Resolution{WorkspaceID: workspaceID, ProjectID: projectID}

	created, err := r.ensure(ctx, &r.stage.workspaces, workspaceID, r.state.WorkspaceExists)
	if err != nil {
		return res, fmt.Errorf("resolving workspace %d: %w", workspaceID, err)
	}
	res.WorkspaceCreated = created
	if created {
		r.log.Debug("staged workspace stub", slog.Int64("workspace_id", workspaceID))
	}

	if projectID != nil {
		created, err := r.ensure(ctx, &r.stage.projects, *projectID, r.state.ProjectExists)
		if err != nil {
			return res, fmt.Errorf("resolving project %d: %w", *projectID, err)
		}
		res.ProjectCreated = created
		if created {
			r.log.Debug("staged project stub", slog.Int64("project_id", *projectID))
		}
	}
	return res, nil
}

func (r *Resolver) ensure(ctx context.Context, refs *refSet, id int64, exists func(context.Context, int64) (bool, error)) (bool, error) {
	if refs.lookup(id) != refUnknown {
		return false, nil
	}
	ok, err := exists(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		refs.markPersisted(id)
		return false, nil
	}
	return refs.stage(id), nil
}
