package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alice.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, path)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alice.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "open #%d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	for _, table := range []string{"cursor", "watermarks", "submissions", "tag_counts"} {
		assert.NotEmpty(t, columnsOf(t, s.DB(), table), "table %s", table)
	}
}

func TestOpen_Failures(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "no", "such", "dir", "alice.db"))
		assert.Error(t, err)
	})

	t.Run("not a database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "alice.db")
		junk := []byte("1184097393 afk off [retro 2007-07-10T19:56:33Z]\n and more text")
		require.NoError(t, os.WriteFile(path, junk, 0o644))

		_, err := Open(path)
		assert.Error(t, err, "a ledger file must never be opened as a store")
	})
}

func TestClose_Unopened(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	// Values as SQLite reports them back.
	want := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "2",
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, value := range want {
		var got string
		require.NoError(t, s.DB().QueryRow("PRAGMA "+name).Scan(&got))
		assert.Equal(t, value, got, "pragma %s", name)
	}
}

func TestSchema_Columns(t *testing.T) {
	s := createTestStore(t)

	want := map[string][]string{
		"cursor":      {"id", "seed", "average_gap_seconds", "last_fire_time", "updated_at"},
		"watermarks":  {"graph", "scheduled_time", "seq", "updated_at"},
		"submissions": {"id", "graph", "mode", "entry_count", "first_time", "last_time", "ok", "error", "attempted_at"},
		"tag_counts":  {"tag", "display", "count"},
	}
	for table, cols := range want {
		assert.ElementsMatch(t, cols, columnsOf(t, s.DB(), table), "table %s", table)
	}
}

func TestSchema_SingleCursorRow(t *testing.T) {
	s := createTestStore(t)

	_, err := s.DB().Exec(`
		INSERT INTO cursor (id, seed, average_gap_seconds, updated_at)
		VALUES (2, x'00', 60, 0)
	`)
	assert.Error(t, err, "CHECK (id = 1) must reject a second cursor row")
}

func TestMigrations_FreshStoreIsLatest(t *testing.T) {
	s := createTestStore(t)

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, latestVersion(), v)
	assert.Contains(t, indexesOf(t, s.DB(), "submissions"), "idx_submissions_graph")
}

func TestMigrations_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alice.db")

	// A store written before migrations existed: tables, no index, version 0.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Contains(t, indexesOf(t, s.DB(), "submissions"), "idx_submissions_graph")
}

func columnsOf(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	require.NoError(t, err)
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		cols = append(cols, name)
	}
	require.NoError(t, rows.Err())
	return cols
}

func indexesOf(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?`, table)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}
