package app

import (
	"context"
	"log/slog"

	"toggl-ingest/internal/adapter/sqlstore"
	tg "toggl-ingest/internal/adapter/toggl"
	"toggl-ingest/internal/config"
	"toggl-ingest/internal/usecase"
)

// App wires adapters and use cases.
type App struct {
	log   *slog.Logger
	uc    *usecase.IngestUseCase
	store *sqlstore.Store
}

// New opens the store (applying migrations) and builds the ingestion use case.
func New(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	togglClient := tg.NewClient(cfg.Toggl.BaseURL, cfg.Toggl.APIToken, cfg.Toggl.Timeout, log)
	store, err := sqlstore.Open(ctx, cfg.DB.Driver, cfg.DataSource(), log)
	if err != nil {
		return nil, err
	}

	uc := &usecase.IngestUseCase{
		Log:    log,
		Source: togglClient,
		Store:  store,
	}
	return &App{log: log, uc: uc, store: store}, nil
}

// RunOnce performs a single ingestion run.
func (a *App) RunOnce(ctx context.Context) (usecase.Report, error) {
	return a.uc.Run(ctx)
}

// Close releases the database handle.
func (a *App) Close() error { return a.store.Close() }
