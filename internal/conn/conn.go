// Package conn connects the runtime to a SQL backend.
//
// A Connector runs SQL text and returns fully materialized result tables.
// Run compiles a QueryIR query first, so most callers never handle SQL
// strings directly.
package conn

import (
	"context"
	"fmt"

	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/querysql"
)

// Connector is the backend contract.
type Connector interface {
	// Query runs a statement and materializes every row.
	Query(ctx context.Context, query string, args ...any) (*Table, error)

	// Exec runs a statement that returns no rows (DDL, inserts).
	Exec(ctx context.Context, stmt string) error
}

// Run compiles q to parameterized SQL and runs it on c.
func Run(ctx context.Context, c Connector, q queryir.Query) (*Table, error) {
	sql, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}
	return c.Query(ctx, sql, params...)
}
