package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// pragmas are applied to every connection the store opens.
// synchronous=FULL makes a returned SaveCursor survive power loss.
var pragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "FULL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// migration upgrades a store whose user_version is below version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order on open, after the embedded schema.
var migrations = []migration{
	{
		version: 1,
		name:    "submissions history index",
		stmt: `CREATE INDEX IF NOT EXISTS idx_submissions_graph
		       ON submissions(graph, attempted_at)`,
	},
}

// Store holds one user's cursor, watermarks, submission audit and tag counts.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite store at path and brings its schema up
// to date. Opening the same path again is safe.
//
// A file that is not a SQLite database fails here. Callers must not fall
// back to a fresh store: that would silently drop the cursor.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect store %s: %w", path, err)
	}

	// One connection: pragmas stick and writes serialize.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	for _, step := range []func() error{s.applyPragmas, s.applySchema, s.migrate} {
		if err := step(); err != nil {
			db.Close()
			return nil, fmt.Errorf("open store %s: %w", path, err)
		}
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection for ad hoc queries in tooling and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SchemaVersion reports the store's user_version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

func (s *Store) applyPragmas() error {
	for _, p := range pragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	return nil
}

func (s *Store) applySchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) migrate() error {
	current, err := s.SchemaVersion(context.Background())
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if current >= m.version {
			continue
		}
		if _, err := s.db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			return fmt.Errorf("migration %d: set user_version: %w", m.version, err)
		}
		current = m.version
	}
	return nil
}

// latestVersion is the user_version of a fully migrated store.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].version
}
