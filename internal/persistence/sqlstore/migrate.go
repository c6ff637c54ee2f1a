package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

var reMigrationFilename = regexp.MustCompile(`^(\d{4})_([a-z0-9_]+)\.sql$`)

// Migration is one embedded schema step.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// Dialect maps a sqlx driver name to the migration directory that serves it.
func Dialect(driverName string) (string, error) {
	switch driverName {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "pgx", "postgres":
		return "postgres", nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported driver %q", driverName)
	}
}

// Migrations lists the embedded migrations for a dialect in version order.
func Migrations(dialect string) ([]Migration, error) {
	dir := path.Join("migrations", dialect)
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read migrations for %s: %w", dialect, err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := reMigrationFilename.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, fmt.Errorf("sqlstore: invalid migration filename %q", entry.Name())
		}
		content, err := fs.ReadFile(migrationsFS, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("sqlstore: read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Version: match[1], Name: match[2], SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// Migrate applies every embedded migration not yet recorded in
// schema_migrations and returns the versions it applied.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	dialect, err := Dialect(s.db.DriverName())
	if err != nil {
		return nil, err
	}
	migrations, err := Migrations(dialect)
	if err != nil {
		return nil, err
	}

	const versionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, versionTable); err != nil {
		return nil, fmt.Errorf("sqlstore: create schema_migrations: %w", err)
	}

	var applied []string
	for _, migration := range migrations {
		var count int
		if err := s.db.GetContext(ctx, &count, s.rebind(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`), migration.Version); err != nil {
			return applied, fmt.Errorf("sqlstore: check migration %s: %w", migration.Version, err)
		}
		if count > 0 {
			continue
		}

		started := time.Now()
		err := s.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			for i, stmt := range splitStatements(migration.SQL) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("sqlstore: migration %s statement %d: %w", migration.Version, i+1, err)
				}
			}
			_, err := tx.ExecContext(ctx,
				s.rebind(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`),
				migration.Version, migration.Name, formatTime(time.Now()))
			return err
		})
		if err != nil {
			return applied, err
		}
		s.logger.Info("applied migration",
			"version", migration.Version,
			"name", migration.Name,
			"duration_ms", time.Since(started).Milliseconds())
		applied = append(applied, migration.Version)
	}
	return applied, nil
}

// splitStatements breaks a migration file on semicolons, dropping blank
// statements and comment-only lines.
func splitStatements(script string) []string {
	var statements []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
