package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "open %d", i)
		require.NoError(t, s.DB().Ping())
		require.NoError(t, s.Close())
	}

	s := createTestStoreAt(t, path)
	for _, table := range []string{"specs", "snapshots", "snapshot_charts"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/state.db")
	require.Error(t, err)
}

func TestClose(t *testing.T) {
	assert.NoError(t, (&Store{}).Close())

	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_ = s.Close()
}

func TestOpen_Pragmas(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want map[string]string
	}{
		{
			name: "defaults",
			want: map[string]string{
				"journal_mode": "wal",
				"synchronous":  "1", // NORMAL
				"busy_timeout": "5000",
				"foreign_keys": "1",
			},
		},
		{
			name: "options",
			opts: []Option{WithBusyTimeout(250 * time.Millisecond), WithSynchronous("FULL")},
			want: map[string]string{
				"synchronous":  "2",
				"busy_timeout": "250",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(filepath.Join(t.TempDir(), "state.db"), tt.opts...)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })

			for name, want := range tt.want {
				got, err := s.pragma(name)
				require.NoError(t, err)
				assert.Equal(t, want, got, "PRAGMA %s", name)
			}
		})
	}
}

func TestSchema_Tables(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		table   string
		columns []string
	}{
		{"specs", []string{"hash", "body"}},
		{"snapshots", []string{"id", "name", "hash", "version", "created_at", "predicate", "layout"}},
		{"snapshot_charts", []string{"snapshot_id", "chart_id", "spec_hash", "state"}},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			columns := tableColumns(t, s.db, tt.table)
			for _, col := range tt.columns {
				assert.Contains(t, columns, col)
			}
		})
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	assert.Contains(t, tableIndexes(t, s.db, "snapshot_charts"), "idx_snapshot_charts_spec")
	assert.Contains(t, tableIndexes(t, s.db, "snapshots"), "idx_snapshots_name")
}

func TestSchema_Constraints(t *testing.T) {
	insertSnapshot := `
		INSERT INTO snapshots (name, hash, version, created_at, predicate, layout)
		VALUES ('main', 'h1', 1, '2026-01-01T00:00:00Z', '', '{}')`

	t.Run("unique_name_hash", func(t *testing.T) {
		s := createTestStore(t)
		_, err := s.db.Exec(insertSnapshot)
		require.NoError(t, err)
		_, err = s.db.Exec(insertSnapshot)
		assert.Error(t, err)
	})

	t.Run("chart_spec_foreign_key", func(t *testing.T) {
		s := createTestStore(t)
		_, err := s.db.Exec(insertSnapshot)
		require.NoError(t, err)
		_, err = s.db.Exec(`
			INSERT INTO snapshot_charts (snapshot_id, chart_id, spec_hash, state)
			VALUES (1, 'a', 'missing', '{}')`)
		assert.Error(t, err)
	})
}

func TestMigrate_FromEachVersion(t *testing.T) {
	for from := 0; from < currentSchemaVersion; from++ {
		t.Run(fmt.Sprintf("from_v%d", from), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.db")

			// Tables as first released, without indexes.
			db, err := sql.Open("sqlite3", path)
			require.NoError(t, err)
			for _, stmt := range []string{
				"CREATE TABLE specs (hash TEXT PRIMARY KEY, body TEXT NOT NULL)",
				"CREATE TABLE snapshots (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, hash TEXT NOT NULL, version INTEGER NOT NULL, created_at TEXT NOT NULL, predicate TEXT NOT NULL, layout TEXT NOT NULL, UNIQUE(name, hash))",
				"CREATE TABLE snapshot_charts (snapshot_id INTEGER NOT NULL, chart_id TEXT NOT NULL, spec_hash TEXT NOT NULL, state TEXT NOT NULL, PRIMARY KEY (snapshot_id, chart_id))",
			} {
				_, err := db.Exec(stmt)
				require.NoError(t, err)
			}
			_, err = db.Exec(fmt.Sprintf("PRAGMA user_version = %d", from))
			require.NoError(t, err)
			require.NoError(t, db.Close())

			s := createTestStoreAt(t, path)
			got, err := s.pragma("user_version")
			require.NoError(t, err)
			assert.Equal(t, strconv.Itoa(currentSchemaVersion), got)
			assert.Contains(t, tableIndexes(t, s.db, "snapshot_charts"), "idx_snapshot_charts_spec")
			assert.Contains(t, tableIndexes(t, s.db, "snapshots"), "idx_snapshots_name")
		})
	}
}

func TestMigrations_Ordered(t *testing.T) {
	for i, m := range migrations {
		assert.Equal(t, i+1, m.version, m.name)
		assert.NotEmpty(t, m.stmts, m.name)
	}
}

func tableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	require.NoError(t, err)
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		columns = append(columns, name)
	}
	require.NoError(t, rows.Err())
	return columns
}

func tableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	require.NoError(t, err)
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		indexes = append(indexes, name)
	}
	require.NoError(t, rows.Err())
	slices.Sort(indexes)
	return indexes
}
