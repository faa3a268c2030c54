package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/mysql/*.sql sql/sqlite/*.sql
var migrationsFS embed.FS

// Dialects with embedded migrations.
const (
	MySQL  = "mysql"
	SQLite = "sqlite"
)

// Run applies pending migrations found under internal/migrate/sql/<dialect>.
// Migrations must be named like 0001_description.sql and are executed in
// lexicographic order, one statement at a time. Statements are separated by
// semicolons and must not contain semicolons themselves.
func Run(ctx context.Context, db *sql.DB, dialect string, log *slog.Logger) error {
	if dialect != MySQL && dialect != SQLite {
		return fmt.Errorf("migrate: unsupported dialect %q", dialect)
	}
	if err := ensureMigrationsTable(ctx, db, dialect); err != nil {
		return err
	}

	files, err := fs.Glob(migrationsFS, path.Join("sql", dialect, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	applied, err := loadApplied(ctx, db)
	if err != nil {
		return err
	}

	for _, f := range files {
		base := path.Base(f)
		ver, err := parseVersion(base)
		if err != nil {
			return fmt.Errorf("invalid migration filename %q: %w", base, err)
		}
		if applied[ver] {
			log.Debug("migration already applied", slog.Int("version", ver), slog.String("file", base))
			continue
		}
		b, err := fs.ReadFile(migrationsFS, f)
		if err != nil {
			return err
		}
		log.Info("applying migration", slog.Int("version", ver), slog.String("file", base), slog.String("dialect", dialect))
		for _, stmt := range splitStatements(string(b)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying %s: %w", base, err)
			}
		}
		if err := recordApplied(ctx, db, dialect, ver); err != nil {
			return err
		}
	}
	return nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB, dialect string) error {
	ddl := `CREATE TABLE IF NOT EXISTS schema_migrations (
        version BIGINT PRIMARY KEY,
        applied_at DATETIME(6) NOT NULL
    ) ENGINE=InnoDB;`
	if dialect == SQLite {
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL
    );`
	}
	_, err := db.ExecContext(ctx, ddl)
	return err
}

func loadApplied(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	m := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		m[v] = true
	}
	return m, rows.Err()
}

// recordApplied marks version as applied. A concurrent migrator may have
// recorded the same version first; that is not an error.
func recordApplied(ctx context.Context, db *sql.DB, dialect string, version int) error {
	q := "INSERT IGNORE INTO schema_migrations(version, applied_at) VALUES(?, ?)"
	if dialect == SQLite {
		q = "INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?) ON CONFLICT(version) DO NOTHING"
	}
	_, err := db.ExecContext(ctx, q, version, time.Now().UTC())
	return err
}

func parseVersion(name string) (int, error) {
	// Expect prefix like 0001_...
	i := strings.IndexByte(name, '_')
	if i <= 0 {
		return 0, fmt.Errorf("missing prefix number")
	}
	v, err := strconv.Atoi(name[:i])
	if err != nil {
		return 0, err
	}
	return v, nil
}

func splitStatements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
