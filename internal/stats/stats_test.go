package stats

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/queryir"
)

func openTestDB(t *testing.T, ddl ...string) *conn.DuckDB {
	t.Helper()
	db, err := conn.OpenDuckDB("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(context.Background(), stmt))
	}
	return db
}

func TestCompute_Numeric(t *testing.T) {
	db := openTestDB(t,
		"CREATE TABLE t (v INTEGER)",
		"INSERT INTO t VALUES (1), (2), (3), (4), (5), (100)",
	)

	fs, err := Compute(context.Background(), db, queryir.Table{Name: "t"}, "v")
	require.NoError(t, err)
	require.NotNil(t, fs)
	require.NotNil(t, fs.Quantitative)
	assert.Nil(t, fs.Nominal)

	q := fs.Quantitative
	assert.Equal(t, int64(6), q.Count)
	assert.Equal(t, 1.0, q.Min)
	assert.Equal(t, 100.0, q.Max)
	assert.Equal(t, int64(0), q.CountNonFinite)
	assert.InDelta(t, 3.5, q.Median, 1e-9)
	assert.InDelta(t, 115.0/6, q.Mean, 1e-9)
	assert.Equal(t, 1.0, q.MinPositive)
	assert.LessOrEqual(t, q.Min, q.Median)
	assert.LessOrEqual(t, q.Median, q.Max)
}

func TestCompute_NumericNonFinite(t *testing.T) {
	db := openTestDB(t,
		"CREATE TABLE t (v DOUBLE)",
		"INSERT INTO t VALUES (-2.0), (0.0), (0.5), ('NaN'::DOUBLE), ('Infinity'::DOUBLE), (NULL)",
	)

	fs, err := Compute(context.Background(), db, queryir.Table{Name: "t"}, "v")
	require.NoError(t, err)
	q := fs.Quantitative
	require.NotNil(t, q)

	assert.Equal(t, int64(3), q.Count)
	assert.Equal(t, int64(3), q.CountNonFinite)
	assert.Equal(t, -2.0, q.Min)
	assert.Equal(t, 0.5, q.Max)
	assert.Equal(t, 0.5, q.MinPositive)
}

func TestCompute_NumericEmpty(t *testing.T) {
	db := openTestDB(t, "CREATE TABLE t (v DOUBLE)")

	fs, err := Compute(context.Background(), db, queryir.Table{Name: "t"}, "v")
	require.NoError(t, err)
	q := fs.Quantitative
	require.NotNil(t, q)
	assert.Equal(t, int64(0), q.Count)
	assert.True(t, math.IsNaN(q.Min))
	assert.True(t, math.IsNaN(q.MinPositive))
}

func TestCompute_String(t *testing.T) {
	db := openTestDB(t,
		"CREATE TABLE t (s VARCHAR)",
		"INSERT INTO t VALUES ('a'), ('a'), ('a'), ('b'), ('b'), ('c'), (NULL)",
	)

	fs, err := Compute(context.Background(), db, queryir.Table{Name: "t"}, "s")
	require.NoError(t, err)
	require.NotNil(t, fs.Nominal)
	assert.Nil(t, fs.Quantitative)

	n := fs.Nominal
	assert.Equal(t, []Level{{"a", 3}, {"b", 2}, {"c", 1}}, n.Levels)
	assert.Equal(t, int64(1), n.NullCount)
	assert.Equal(t, int64(0), n.OtherCount)
	assert.Equal(t, int64(0), n.NumOtherLevels)
}

func TestCompute_StringBeyondTopLevels(t *testing.T) {
	// 1100 distinct values; v0..v99 appear twice so they outrank the rest.
	db := openTestDB(t,
		"CREATE TABLE t AS SELECT 'v' || range::VARCHAR AS s FROM range(1100)",
		"INSERT INTO t SELECT 'v' || range::VARCHAR FROM range(100)",
	)

	fs, err := Compute(context.Background(), db, queryir.Table{Name: "t"}, "s")
	require.NoError(t, err)
	n := fs.Nominal
	require.NotNil(t, n)

	assert.Len(t, n.Levels, TopLevels)
	assert.Equal(t, int64(2), n.Levels[0].Count)
	assert.Equal(t, int64(100), n.NumOtherLevels)
	assert.Equal(t, int64(100), n.OtherCount)
}

func TestCompute_CustomSource(t *testing.T) {
	db := openTestDB(t, "CREATE TABLE t AS SELECT range AS v FROM range(10)")

	src := queryir.SQLSource{SQL: "SELECT v * 2 AS w FROM t WHERE $filter", Placeholder: "$filter"}
	fs, err := Compute(context.Background(), db, src, "w")
	require.NoError(t, err)
	require.NotNil(t, fs.Quantitative)
	assert.Equal(t, 18.0, fs.Quantitative.Max)
}

func TestCompute_UnsupportedType(t *testing.T) {
	db := openTestDB(t, "CREATE TABLE t (b BOOLEAN)")

	fs, err := Compute(context.Background(), db, queryir.Table{Name: "t"}, "b")
	require.NoError(t, err)
	assert.Nil(t, fs)
}

func TestCompute_QueryErrorPropagates(t *testing.T) {
	db := openTestDB(t)

	_, err := Compute(context.Background(), db, queryir.Table{Name: "missing"}, "v")
	require.Error(t, err)
}

func TestTypeClassification(t *testing.T) {
	assert.True(t, IsNumericType("BIGINT"))
	assert.True(t, IsNumericType("DECIMAL(18,3)"))
	assert.True(t, IsNumericType("double"))
	assert.False(t, IsNumericType("VARCHAR"))
	assert.True(t, IsStringType("VARCHAR"))
	assert.False(t, IsStringType("DATE"))
}
