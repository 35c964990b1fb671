package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/crossplot/internal/conn"
)

// DatabaseOptions holds the flags of commands that query DuckDB.
type DatabaseOptions struct {
	Database string   // DuckDB file; empty for an in-memory database
	Table    string   // table the chart reads
	Setup    []string // statements run before anything else
}

// addDatabaseFlags registers --db, --table and --setup on cmd.
func addDatabaseFlags(cmd *cobra.Command, opts *DatabaseOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to DuckDB database (default in-memory)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table to read (required)")
	cmd.Flags().StringArrayVar(&opts.Setup, "setup", nil, "SQL statement to run first (repeatable)")
	_ = cmd.MarkFlagRequired("table")
}

// openDatabase opens the database and runs the setup statements.
func openDatabase(ctx context.Context, opts *DatabaseOptions) (*conn.DuckDB, error) {
	db, err := conn.OpenDuckDB(opts.Database)
	if err != nil {
		return nil, err
	}
	for i, stmt := range opts.Setup {
		if err := db.Exec(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup statement %d: %w", i+1, err)
		}
	}
	return db, nil
}
