package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations
var migrationFS embed.FS

// ApplyMigrations runs every embedded migration for dialect that is not yet
// recorded in schema_migrations. Statements are idempotent so two cold
// starts racing on an empty database both succeed.
func ApplyMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version VARCHAR(255) PRIMARY KEY, applied_at `+timeType(dialect)+` NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	dir := path.Join("migrations", string(dialect))
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("read migrations for %s: %w", dialect, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		if applied[version] {
			continue
		}
		b, err := fs.ReadFile(migrationFS, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		for _, stmt := range splitStatements(string(b)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil && !isAlreadyExistsErr(err) {
				return fmt.Errorf("apply migration %s: %w", name, err)
			}
		}
		if _, err := db.ExecContext(ctx, rebind(dialect, `INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)`), version, time.Now().UTC()); err != nil && !isDuplicateErr(err) {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		slog.Info("migration applied", "version", version, "dialect", string(dialect))
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func splitStatements(src string) []string {
	var out []string
	for _, part := range strings.Split(src, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func timeType(d Dialect) string {
	switch d {
	case Postgres:
		return "TIMESTAMPTZ"
	case MySQL:
		return "DATETIME(6)"
	default:
		return "DATETIME"
	}
}

// Rebind rewrites ? placeholders to the dialect's native form.
func Rebind(d Dialect, query string) string { return rebind(d, query) }

func rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func isAlreadyExistsErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column") || strings.Contains(msg, "duplicate key name")
}

func isDuplicateErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
