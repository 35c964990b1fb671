// Package stats computes per-field distribution statistics that drive
// binning and scale inference.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/queryir"
)

// TopLevels caps the number of string levels fetched individually. Values
// outside the top list are summarized by OtherCount and NumOtherLevels.
const TopLevels = 1000

// FieldStats summarizes one field. Exactly one of Quantitative and Nominal
// is set.
type FieldStats struct {
	Quantitative *Quantitative `json:"quantitative,omitempty"`
	Nominal      *Nominal      `json:"nominal,omitempty"`
}

// Quantitative summarizes the finite values of a numeric field. Min, Max,
// Mean and Median are NaN when there are no finite values; MinPositive is
// NaN when no value is positive.
type Quantitative struct {
	Count          int64   `json:"count"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	Mean           float64 `json:"mean"`
	Median         float64 `json:"median"`
	MinPositive    float64 `json:"minPositive"`
	CountNonFinite int64   `json:"countNonFinite"`
}

// Level is one distinct string value and its frequency.
type Level struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Nominal summarizes a string field. Levels are ordered by count
// descending, ties broken by value ascending.
type Nominal struct {
	Levels         []Level `json:"levels"`
	OtherCount     int64   `json:"otherCount"`
	NumOtherLevels int64   `json:"numOtherLevels"`
	NullCount      int64   `json:"nullCount"`
}

// Compute determines the storage type of field in src and computes its
// statistics. It returns nil, nil for types that cannot be visualized.
// Query failures are returned.
func Compute(ctx context.Context, c conn.Connector, src queryir.Source, field string) (*FieldStats, error) {
	typ, err := describe(ctx, c, src, field)
	if err != nil {
		return nil, err
	}

	switch {
	case IsNumericType(typ):
		q, err := computeQuantitative(ctx, c, src, field)
		if err != nil {
			return nil, fmt.Errorf("stats %s: %w", field, err)
		}
		return &FieldStats{Quantitative: q}, nil
	case IsStringType(typ):
		n, err := computeNominal(ctx, c, src, field)
		if err != nil {
			return nil, fmt.Errorf("stats %s: %w", field, err)
		}
		return &FieldStats{Nominal: n}, nil
	}
	slog.Warn("unsupported column type", "field", field, "type", typ)
	return nil, nil
}

func describe(ctx context.Context, c conn.Connector, src queryir.Source, field string) (string, error) {
	table, err := conn.Run(ctx, c, queryir.Describe{Query: queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.Col(field)}},
		From:    src,
	}})
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", field, err)
	}
	if table.Len() == 0 {
		return "", fmt.Errorf("describe %s: no columns", field)
	}
	typ, _ := table.Value(0, "column_type").(string)
	return typ, nil
}

var numericTypes = map[string]bool{
	"TINYINT": true, "SMALLINT": true, "INTEGER": true, "BIGINT": true, "HUGEINT": true,
	"UTINYINT": true, "USMALLINT": true, "UINTEGER": true, "UBIGINT": true, "UHUGEINT": true,
	"FLOAT": true, "REAL": true, "DOUBLE": true,
}

// IsNumericType reports whether a DuckDB column type is summarized
// quantitatively.
func IsNumericType(typ string) bool {
	typ = strings.ToUpper(typ)
	return numericTypes[typ] || strings.HasPrefix(typ, "DECIMAL")
}

// IsStringType reports whether a DuckDB column type is summarized
// nominally.
func IsStringType(typ string) bool {
	return strings.ToUpper(typ) == "VARCHAR"
}

func computeQuantitative(ctx context.Context, c conn.Connector, src queryir.Source, field string) (*Quantitative, error) {
	value := queryir.Double(queryir.Col(field))
	agg := func(name string) queryir.Expr {
		return queryir.Double(queryir.Call(name, value))
	}

	var summary, nonFinite *conn.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = conn.Run(gctx, c, queryir.Select{
			Columns: []queryir.Column{
				{Expr: queryir.Call("COUNT", queryir.Star{}), Alias: "count"},
				{Expr: agg("MIN"), Alias: "min"},
				{Expr: agg("MAX"), Alias: "max"},
				{Expr: agg("AVG"), Alias: "mean"},
				{Expr: agg("MEDIAN"), Alias: "median"},
				{Expr: queryir.Double(queryir.Func{
					Name:   "MIN",
					Args:   []queryir.Expr{value},
					Filter: queryir.Compare{Expr: value, Op: queryir.OpGt, Value: 0},
				}), Alias: "minPositive"},
			},
			From:  src,
			Where: queryir.IsFinite{Expr: value},
		})
		return err
	})
	g.Go(func() error {
		var err error
		nonFinite, err = conn.Run(gctx, c, queryir.Select{
			Columns: []queryir.Column{{Expr: queryir.Call("COUNT", queryir.Star{}), Alias: "count"}},
			From:    src,
			Where: queryir.AnyOf(
				queryir.IsFinite{Expr: value, Not: true},
				queryir.IsNull{Expr: queryir.Col(field)},
			),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if summary.Len() == 0 || nonFinite.Len() == 0 {
		return nil, fmt.Errorf("summary query returned no rows")
	}

	q := &Quantitative{
		Count:          intValue(summary.Value(0, "count")),
		Min:            floatOrNaN(summary.Value(0, "min")),
		Max:            floatOrNaN(summary.Value(0, "max")),
		Mean:           floatOrNaN(summary.Value(0, "mean")),
		Median:         floatOrNaN(summary.Value(0, "median")),
		MinPositive:    floatOrNaN(summary.Value(0, "minPositive")),
		CountNonFinite: intValue(nonFinite.Value(0, "count")),
	}
	return q, nil
}

func computeNominal(ctx context.Context, c conn.Connector, src queryir.Source, field string) (*Nominal, error) {
	col := queryir.Col(field)
	count := queryir.Call("COUNT", queryir.Star{})

	var top, nulls *conn.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		top, err = conn.Run(gctx, c, queryir.Select{
			Columns: []queryir.Column{
				{Expr: col, Alias: "value"},
				{Expr: count, Alias: "count"},
			},
			From:    src,
			Where:   queryir.IsNull{Expr: col, Not: true},
			GroupBy: []queryir.Expr{col},
			OrderBy: []queryir.Order{
				{Expr: queryir.Col("count"), Desc: true},
				{Expr: queryir.Col("value")},
			},
			Limit: TopLevels,
		})
		return err
	})
	g.Go(func() error {
		var err error
		nulls, err = conn.Run(gctx, c, queryir.Select{
			Columns: []queryir.Column{{Expr: count, Alias: "count"}},
			From:    src,
			Where:   queryir.IsNull{Expr: col},
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := &Nominal{Levels: make([]Level, 0, top.Len())}
	values := make([]any, 0, top.Len())
	for i := range top.Rows {
		v := fmt.Sprint(top.Value(i, "value"))
		n.Levels = append(n.Levels, Level{Value: v, Count: intValue(top.Value(i, "count"))})
		values = append(values, v)
	}
	if nulls.Len() > 0 {
		n.NullCount = intValue(nulls.Value(0, "count"))
	}

	if len(n.Levels) < TopLevels {
		return n, nil
	}

	// The top list is full: summarize the remaining values.
	rest := queryir.Select{
		Columns: []queryir.Column{{Expr: count, Alias: "c"}},
		From:    src,
		Where: queryir.AllOf(
			queryir.IsNull{Expr: col, Not: true},
			queryir.In{Expr: col, Values: values, Not: true},
		),
		GroupBy: []queryir.Expr{col},
	}
	other, err := conn.Run(ctx, c, queryir.Select{
		Columns: []queryir.Column{
			{Expr: queryir.Call("SUM", queryir.Col("c")), Alias: "count"},
			{Expr: count, Alias: "distinct"},
		},
		From: queryir.Subquery{Query: rest},
	})
	if err != nil {
		return nil, err
	}
	if other.Len() > 0 {
		n.OtherCount = intValue(other.Value(0, "count"))
		n.NumOtherLevels = intValue(other.Value(0, "distinct"))
	}
	return n, nil
}

func intValue(v any) int64 {
	f, ok := conn.ToFloat(v)
	if !ok {
		return 0
	}
	return int64(f)
}

func floatOrNaN(v any) float64 {
	f, ok := conn.ToFloat(v)
	if !ok {
		return math.NaN()
	}
	return f
}
