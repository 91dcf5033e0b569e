package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/session/*.sql sql/devserver/*.sql
var migrationsFS embed.FS

// Set names a group of migrations applied to one database.
type Set string

const (
	Session   Set = "session"
	DevServer Set = "devserver"
)

// Step is one embedded SQL file. Files are named <version>_<what>.sql.
type Step struct {
	Version int
	File    string
	SQL     string
}

// Steps returns the migrations of set ordered by version.
func Steps(set Set) ([]Step, error) {
	dir := path.Join("sql", string(set))
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("unknown migration set %q: %w", set, err)
	}
	steps := make([]Step, 0, len(entries))
	seen := map[int]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		v, err := strconv.Atoi(prefix)
		if !ok || err != nil || v <= 0 {
			return nil, fmt.Errorf("migration %s/%s: name must start with a positive version", set, e.Name())
		}
		if prev, dup := seen[v]; dup {
			return nil, fmt.Errorf("migration %s: %s and %s share version %d", set, prev, e.Name(), v)
		}
		seen[v] = e.Name()
		body, err := migrationsFS.ReadFile(path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Version: v, File: e.Name(), SQL: string(body)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })
	return steps, nil
}

// Migrate applies the pending steps of set in one transaction.
func Migrate(db *sql.DB, set Set) error {
	return MigrateContext(context.Background(), db, set)
}

func MigrateContext(ctx context.Context, db *sql.DB, set Set) error {
	steps, err := Steps(set)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations(
  migration_set TEXT NOT NULL,
  version INTEGER NOT NULL,
  applied_at TEXT NOT NULL,
  PRIMARY KEY (migration_set, version)
)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	current, err := version(ctx, tx, set)
	if err != nil {
		return err
	}
	for _, s := range steps {
		if s.Version <= current {
			continue
		}
		if _, err := tx.ExecContext(ctx, s.SQL); err != nil {
			return fmt.Errorf("migration %s/%s: %w", set, s.File, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(migration_set, version, applied_at) VALUES (?, ?, ?)`,
			string(set), s.Version, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("record migration %s/%s: %w", set, s.File, err)
		}
	}
	return tx.Commit()
}

// Version reports the highest applied version of set, 0 when none.
func Version(ctx context.Context, db *sql.DB, set Set) (int, error) {
	return version(ctx, db, set)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func version(ctx context.Context, q queryRower, set Set) (int, error) {
	var v sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations WHERE migration_set = ?`, string(set)).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema_migrations: %w", err)
	}
	return int(v.Int64), nil
}
