package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/sym"
)

//go:embed sqlite/migrations/*.sql
var migrationFS embed.FS

const migrationDir = "sqlite/migrations"

// migration is one embedded schema step, named NNN_description.sql
type migration struct {
	version string
	file    string
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir(migrationDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}
	var out []migration
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, errors.AssertionFailedf("migration %s has no version prefix", name)
		}
		out = append(out, migration{version: version, file: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// appliedVersions reads schema_migrations. A database that has never been
// migrated has no such table and yields an empty set.
func appliedVersions(conn *sql.DB) (map[string]bool, error) {
	var n int
	if err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'",
	).Scan(&n); err != nil {
		return nil, errors.Wrap(err, "inspect schema")
	}
	applied := map[string]bool{}
	if n == 0 {
		return applied, nil
	}
	rows, err := conn.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, errors.Wrap(err, "read schema_migrations")
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan schema_migrations")
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Migrate applies every embedded migration not yet recorded in
// schema_migrations. Each runs in its own transaction together with the
// row that records it. log may be nil.
func Migrate(conn *sql.DB, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	all, err := loadMigrations()
	if err != nil {
		return err
	}
	applied, err := appliedVersions(conn)
	if err != nil {
		return err
	}

	pending := 0
	for _, m := range all {
		if applied[m.version] {
			continue
		}
		if err := apply(conn, m); err != nil {
			return err
		}
		pending++
		log.Infow("Applied migration", "migration", m.file, "symbol", sym.DB)
	}

	log.Debugw("Schema up to date", "migrations", len(all), "applied", pending, "symbol", sym.DB)
	return nil
}

func apply(conn *sql.DB, m migration) error {
	body, err := migrationFS.ReadFile(path.Join(migrationDir, m.file))
	if err != nil {
		return errors.Wrapf(err, "read %s", m.file)
	}
	tx, err := conn.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin %s", m.file)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(string(body)); err != nil {
		return errors.Wrapf(err, "execute %s", m.file)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		return errors.Wrapf(err, "record %s", m.file)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.file)
}
