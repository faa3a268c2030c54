package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"toggl-ingest/internal/domain"
	"toggl-ingest/internal/migrate"
)

// Store implements ports.Store on MySQL, or on SQLite for local runs and tests.
type Store struct {
	db      *sqlx.DB
	dialect string
	log     *slog.Logger
}

// Open connects using driver ("mysql" or "sqlite") and dsn, then applies
// pending migrations.
// Example MySQL DSN: user:pass@tcp(host:3306)/dbname?parseTime=true
func Open(ctx context.Context, driver, dsn string, log *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlstore: DSN is required")
	}
	if driver != migrate.MySQL && driver != migrate.SQLite {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == migrate.SQLite {
		// A single connection serializes writers and keeps per-connection
		// pragmas in effect.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate.Run(ctx, db, driver, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return &Store{db: sqlx.NewDb(db, driver), dialect: driver, log: log}, nil
}

// WorkspaceExists reports whether a workspace row with id is persisted.
func (s *Store) WorkspaceExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, "SELECT COUNT(*) FROM workspaces WHERE id = ?", id)
}

// ProjectExists reports whether a project row with id is persisted.
func (s *Store) ProjectExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, "SELECT COUNT(*) FROM projects WHERE id = ?", id)
}

// TimeEntryExists reports whether a time entry row with id is persisted.
func (s *Store) TimeEntryExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, "SELECT COUNT(*) FROM time_entries WHERE id = ?", id)
}

func (s *Store) exists(ctx context.Context, q string, id int64) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(q), id); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Commit inserts the staged stubs and then the staged entries in a single
// transaction. On any failure the transaction is rolled back and a
// *domain.CommitError is returned.
func (s *Store) Commit(ctx context.Context, b domain.Batch) (domain.CommitResult, error) {
	if b.Empty() {
		return domain.CommitResult{}, nil
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return domain.CommitResult{}, s.commitErr(err)
	}

	const (
		qWorkspace = `INSERT INTO workspaces (id, name) VALUES (?, ?)`
		qProject   = `INSERT INTO projects (id, name) VALUES (?, ?)`
		qEntry     = `
INSERT INTO time_entries
  (id, description, start_time, end_time, duration, user_id, project_id, workspace_id)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)`
	)
	err = execEach(ctx, tx, qWorkspace, len(b.Workspaces), func(i int) []any {
		w := b.Workspaces[i]
		return []any{w.ID, w.Name}
	})
	if err == nil {
		err = execEach(ctx, tx, qProject, len(b.Projects), func(i int) []any {
			p := b.Projects[i]
			return []any{p.ID, p.Name}
		})
	}
	if err == nil {
		err = execEach(ctx, tx, qEntry, len(b.Entries), func(i int) []any {
			e := b.Entries[i]
			var project, end interface{}
			if e.ProjectID != nil {
				project = *e.ProjectID
			}
			if e.End != nil {
				end = e.End.UTC()
			}
			return []any{e.ID, e.Description, e.Start.UTC(), end, e.DurationSec, e.UserID, project, e.WorkspaceID}
		})
	}
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("rollback failed", slog.String("error", rbErr.Error()))
		}
		return domain.CommitResult{}, s.commitErr(err)
	}
	if err := tx.Commit(); err != nil {
		return domain.CommitResult{}, s.commitErr(err)
	}

	res := domain.CommitResult{
		WorkspacesCreated: len(b.Workspaces),
		ProjectsCreated:   len(b.Projects),
		EntriesInserted:   len(b.Entries),
	}
	s.log.Info("committed batch",
		slog.String("dialect", s.dialect),
		slog.Int("workspaces", res.WorkspacesCreated),
		slog.Int("projects", res.ProjectsCreated),
		slog.Int("entries", res.EntriesInserted),
	)
	return res, nil
}

func execEach(ctx context.Context, tx *sqlx.Tx, q string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, tx.Rebind(q))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) commitErr(err error) error {
	return &domain.CommitError{Duplicate: isDuplicateKey(err), Err: err}
}

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062 // ER_DUP_ENTRY
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}

// ListWorkspaces returns all workspace rows ordered by id.
func (s *Store) ListWorkspaces(ctx context.Context) ([]domain.Workspace, error) {
	var out []domain.Workspace
	err := s.db.SelectContext(ctx, &out, `SELECT id, COALESCE(name, '') AS name, organization_id FROM workspaces ORDER BY id`)
	return out, err
}

// ListProjects returns all project rows ordered by id.
func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var out []domain.Project
	err := s.db.SelectContext(ctx, &out, `SELECT id, COALESCE(name, '') AS name FROM projects ORDER BY id`)
	return out, err
}

// ListTimeEntries returns all time entry rows ordered by id.
func (s *Store) ListTimeEntries(ctx context.Context) ([]domain.TimeEntry, error) {
	var out []domain.TimeEntry
	err := s.db.SelectContext(ctx, &out, `
SELECT id, description, start_time, end_time, duration, user_id, project_id, workspace_id
FROM time_entries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Start = out[i].Start.UTC()
		if out[i].End != nil {
			end := out[i].End.UTC()
			out[i].End = &end
		}
	}
	return out, nil
}

// Close closes the underlying DB. Not wired via interface to keep ports minimal.
func (s *Store) Close() error { return s.db.Close() }
