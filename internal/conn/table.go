package conn

import (
	"math"
	"math/big"
)

// Table is a materialized query result. Rows are stored row-major and every
// row has len(Columns) values.
type Table struct {
	Columns []string
	// Types holds the database type name of each column ("BIGINT",
	// "VARCHAR", ...). It may be empty for synthesized tables.
	Types []string
	Rows  [][]any
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Append adds a row. Missing trailing values are filled with nil.
func (t *Table) Append(values ...any) {
	row := make([]any, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns one cell, or nil when the column does not exist.
func (t *Table) Value(row int, column string) any {
	i := t.Index(column)
	if i < 0 {
		return nil
	}
	return t.Rows[row][i]
}

// Column returns every value of one column, or nil when it does not exist.
func (t *Table) Column(name string) []any {
	i := t.Index(name)
	if i < 0 {
		return nil
	}
	out := make([]any, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Float returns a cell as float64. ok is false for NULL and non-numeric
// values.
func (t *Table) Float(row int, column string) (float64, bool) {
	return ToFloat(t.Value(row, column))
}

// ToFloat converts a numeric scan result to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case *big.Int:
		if n == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, true
	case interface{ Float64() float64 }:
		return n.Float64(), true
	}
	return math.NaN(), false
}

// normalize converts driver-specific scan results into the plain values the
// rest of the runtime compares and groups on.
func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case *big.Int:
		if val == nil {
			return nil
		}
		if val.IsInt64() {
			return val.Int64()
		}
		f, _ := new(big.Float).SetInt(val).Float64()
		return f
	case interface{ Float64() float64 }:
		return val.Float64()
	}
	return v
}
