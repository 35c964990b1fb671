package conn

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DuckDB is a Connector backed by a database/sql handle using the duckdb
// driver.
type DuckDB struct {
	db *sql.DB
}

// OpenDuckDB opens a DuckDB database. An empty dsn opens a private
// in-memory database.
func OpenDuckDB(dsn string) (*DuckDB, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &DuckDB{db: db}, nil
}

// NewDuckDB wraps an existing handle. The caller keeps ownership.
func NewDuckDB(db *sql.DB) *DuckDB {
	return &DuckDB{db: db}
}

// Close releases the database.
func (d *DuckDB) Close() error {
	return d.db.Close()
}

// DB exposes the underlying handle.
func (d *DuckDB) DB() *sql.DB {
	return d.db
}

// Query implements Connector.
func (d *DuckDB) Query(ctx context.Context, query string, args ...any) (*Table, error) {
	slog.Debug("query", "sql", query, "params", len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	table, err := scanTable(rows)
	if err != nil {
		return nil, err
	}
	return table, nil
}

// Exec implements Connector.
func (d *DuckDB) Exec(ctx context.Context, stmt string) error {
	slog.Debug("exec", "sql", stmt)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

func scanTable(rows *sql.Rows) (*Table, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}
	table := &Table{
		Columns: make([]string, len(types)),
		Types:   make([]string, len(types)),
	}
	for i, ct := range types {
		table.Columns[i] = ct.Name()
		table.Types[i] = ct.DatabaseTypeName()
	}

	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return table, nil
}
