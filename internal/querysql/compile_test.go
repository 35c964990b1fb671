package querysql

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crossplot/internal/queryir"
)

func TestCompile_SimpleSelect(t *testing.T) {
	compiler := NewSQLCompiler()

	query := queryir.Select{
		Columns: []queryir.Column{
			{Expr: queryir.Col("carrier"), Alias: "x"},
			{Expr: queryir.Call("COUNT", queryir.Star{}), Alias: "y"},
		},
		From:    queryir.Table{Name: "flights"},
		Where:   queryir.Compare{Expr: queryir.Col("origin"), Op: queryir.OpEq, Value: "SFO"},
		GroupBy: []queryir.Expr{queryir.Col("carrier")},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "carrier" AS "x", COUNT(*) AS "y" FROM "flights" WHERE "origin" = ? GROUP BY "carrier"`, sql)
	assert.Equal(t, []any{"SFO"}, params)
}

func TestCompile_ValuesNeverInterpolatedInWhere(t *testing.T) {
	compiler := NewSQLCompiler()

	query := queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.Star{}}},
		From:    queryir.Table{Name: "t"},
		Where: queryir.AllOf(
			queryir.Between{Expr: queryir.Col("a"), Lo: 1, Hi: 2.5},
			queryir.In{Expr: queryir.Col("b"), Values: []any{"x'y", int32(3)}},
		),
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "t" WHERE ("a" BETWEEN ? AND ? AND "b" IN (?, ?))`, sql)
	assert.Equal(t, []any{int64(1), 2.5, "x'y", int64(3)}, params)
}

func TestCompile_InlineMode(t *testing.T) {
	compiler := NewInlineCompiler()

	query := queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.Star{}}},
		From:    queryir.Table{Name: "t"},
		Where:   queryir.In{Expr: queryir.Col("b"), Values: []any{"x'y", nil}},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "t" WHERE "b" IN ('x''y', NULL)`, sql)
	assert.Empty(t, params)
}

func TestCompile_ExpressionLiteralsInline(t *testing.T) {
	compiler := NewSQLCompiler()

	bin := queryir.Case{
		Whens: []queryir.When{{
			Cond: queryir.IsFinite{Expr: queryir.Col("v"), Not: true},
			Then: queryir.Lit("n/a"),
		}},
		Else: queryir.Call("FLOOR", queryir.Binary{
			Op:    queryir.OpDiv,
			Left:  queryir.Binary{Op: queryir.OpSub, Left: queryir.Col("v"), Right: queryir.Lit(0.0)},
			Right: queryir.Lit(20.0),
		}),
	}
	query := queryir.Select{
		Columns: []queryir.Column{
			{Expr: bin, Alias: "x"},
			{Expr: queryir.Func{
				Name:   "MIN",
				Args:   []queryir.Expr{queryir.Col("v")},
				Filter: queryir.Compare{Expr: queryir.Col("v"), Op: queryir.OpGt, Value: 0},
			}, Alias: "m"},
		},
		From:    queryir.Table{Name: "t"},
		GroupBy: []queryir.Expr{bin},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)
	caseSQL := `CASE WHEN NOT isfinite("v"::DOUBLE) THEN 'n/a' ELSE FLOOR((("v" - 0) / 20)) END`
	assert.Equal(t,
		`SELECT `+caseSQL+` AS "x", MIN("v") FILTER (WHERE "v" > 0) AS "m" FROM "t" GROUP BY `+caseSQL,
		sql)
	assert.Empty(t, params)
}

func TestCompile_Replace(t *testing.T) {
	compiler := NewSQLCompiler()

	inner := queryir.Select{
		Columns: []queryir.Column{
			{Expr: queryir.Col("a"), Alias: "x"},
			{Expr: queryir.Call("COUNT", queryir.Star{}), Alias: "y"},
		},
		From:    queryir.Table{Name: "t"},
		GroupBy: []queryir.Expr{queryir.Col("a")},
	}
	query := queryir.Replace{
		From: inner,
		Columns: []queryir.Column{{
			Expr: queryir.Binary{
				Op:   queryir.OpDiv,
				Left: queryir.Col("y"),
				Right: queryir.Window{
					Func:        queryir.Call("SUM", queryir.Col("y")),
					PartitionBy: []queryir.Expr{queryir.Col("x")},
				},
			},
			Alias: "y",
		}},
	}

	sql, _, err := compiler.Compile(query)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT * REPLACE (("y" / SUM("y") OVER (PARTITION BY "x")) AS "y") FROM (SELECT "a" AS "x", COUNT(*) AS "y" FROM "t" GROUP BY "a")`,
		sql)
}

func TestCompile_SQLSourcePlaceholder(t *testing.T) {
	compiler := NewSQLCompiler()

	query := queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.Call("COUNT", queryir.Star{}), Alias: "y"}},
		From: queryir.SQLSource{
			SQL:         "SELECT * FROM a WHERE $filter UNION ALL SELECT * FROM b WHERE $filter",
			Placeholder: "$filter",
			Filter:      queryir.Compare{Expr: queryir.Col("k"), Op: queryir.OpEq, Value: 1},
		},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT COUNT(*) AS "y" FROM (SELECT * FROM a WHERE ("k" = ?) UNION ALL SELECT * FROM b WHERE ("k" = ?))`,
		sql)
	assert.Equal(t, []any{int64(1), int64(1)}, params)
}

func TestCompile_SQLSourceWithoutFilter(t *testing.T) {
	compiler := NewSQLCompiler()

	query := queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.Star{}}},
		From:    queryir.SQLSource{SQL: "SELECT * FROM a WHERE $filter", Placeholder: "$filter"},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM (SELECT * FROM a WHERE TRUE)`, sql)
	assert.Empty(t, params)
}

func TestCompile_DescribeAndOrdering(t *testing.T) {
	compiler := NewSQLCompiler()

	query := queryir.Describe{Query: queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.Col("v")}},
		From:    queryir.Table{Name: "main.t"},
		OrderBy: []queryir.Order{{Expr: queryir.Col("v"), Desc: true}},
		Limit:   10,
	}}

	sql, _, err := compiler.Compile(query)
	require.NoError(t, err)
	assert.Equal(t, `DESCRIBE SELECT "v" FROM "main"."t" ORDER BY "v" DESC LIMIT 10`, sql)
}

func TestCompile_InvalidQuery(t *testing.T) {
	compiler := NewSQLCompiler()

	_, _, err := compiler.Compile(queryir.Select{From: queryir.Table{Name: "t"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select without columns")

	_, _, err = compiler.Compile(nil)
	require.Error(t, err)
}

func TestCompilePredicate(t *testing.T) {
	tests := []struct {
		name   string
		pred   queryir.Predicate
		sql    string
		params []any
	}{
		{"nil", nil, "", nil},
		{"empty in", queryir.In{Expr: queryir.Col("a")}, "FALSE", nil},
		{"empty not in", queryir.In{Expr: queryir.Col("a"), Not: true}, "TRUE", nil},
		{"empty and", queryir.And{}, "TRUE", nil},
		{"empty or", queryir.Or{}, "FALSE", nil},
		{"is not null", queryir.IsNull{Expr: queryir.Col("a"), Not: true}, `"a" IS NOT NULL`, nil},
		{
			"or of intervals",
			queryir.Or{Predicates: []queryir.Predicate{
				queryir.And{Predicates: []queryir.Predicate{
					queryir.Compare{Expr: queryir.Col("a"), Op: queryir.OpGe, Value: 0.0},
					queryir.Compare{Expr: queryir.Col("a"), Op: queryir.OpLt, Value: 20.0},
				}},
				queryir.Not{Predicate: queryir.IsFinite{Expr: queryir.Col("a")}},
			}},
			`(("a" >= ? AND "a" < ?) OR NOT (isfinite("a"::DOUBLE)))`,
			[]any{0.0, 20.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := NewSQLCompiler().CompilePredicate(tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		input    any
		expected string
	}{
		{nil, "NULL"},
		{true, "TRUE"},
		{"it's", "'it''s'"},
		{42, "42"},
		{uint8(7), "7"},
		{20.0, "20"},
		{0.1, "0.1"},
		{-2.5, "-2.5"},
		{1e-7, "1e-07"},
		{math.NaN(), "'NaN'::DOUBLE"},
		{math.Inf(-1), "'-Infinity'::DOUBLE"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got, err := Literal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := Literal([]int{1})
	require.Error(t, err)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
	assert.Equal(t, `"s"."t"`, QuoteTable("s.t"))
}
