package migrate

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "migrate.db") + "?_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRun_SQLiteCreatesSchema(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, Run(ctx, db, SQLite, log))
	// Second run is a no-op.
	require.NoError(t, Run(ctx, db, SQLite, log))

	for _, table := range []string{
		"organizations", "groups", "workspaces", "clients",
		"tasks", "projects", "time_entries", "approvals",
	} {
		var n int
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		require.NoError(t, err)
		require.Equal(t, 1, n, "table %s", table)
	}

	var versions int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	require.Equal(t, 1, versions)
}

func TestRun_SQLiteEnforcesForeignKeys(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	require.NoError(t, Run(ctx, db, SQLite, slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := db.ExecContext(ctx, `INSERT INTO time_entries
		(id, description, start_time, duration, user_id, workspace_id)
		VALUES (1, '', '2024-01-01 09:00:00', 60, 7, 999)`)
	require.Error(t, err)
}

func TestRun_VersionRecordedByAnotherMigrator(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, ensureMigrationsTable(ctx, db, SQLite))

	// Another process finished 0001 between our loadApplied and our insert.
	require.NoError(t, recordApplied(ctx, db, SQLite, 1))
	require.NoError(t, recordApplied(ctx, db, SQLite, 1))

	// Run sees the version as applied; forcing the schema through again
	// must still succeed.
	require.NoError(t, Run(ctx, db, SQLite, log))
	_, err := db.ExecContext(ctx, "DELETE FROM schema_migrations")
	require.NoError(t, err)
	require.NoError(t, Run(ctx, db, SQLite, log))
	require.NoError(t, recordApplied(ctx, db, SQLite, 1))

	var versions int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = 1").Scan(&versions))
	require.Equal(t, 1, versions)
}

func TestRun_UnknownDialect(t *testing.T) {
	err := Run(context.Background(), nil, "postgres", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.ErrorContains(t, err, "unsupported dialect")
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("0007_add_index.sql")
	require.NoError(t, err)
	require.Equal(t, 7, v)

	_, err = parseVersion("schema.sql")
	require.Error(t, err)
	_, err = parseVersion("abc_schema.sql")
	require.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (id INT);\n\n  CREATE TABLE b (id INT);\n")
	require.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, got)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	for _, dialect := range []string{MySQL, SQLite} {
		files, err := filepath.Glob(filepath.Join("sql", dialect, "*.sql"))
		require.NoError(t, err)
		require.NotEmpty(t, files, dialect)
	}
}
