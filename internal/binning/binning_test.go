package binning

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/querysql"
	"github.com/roach88/crossplot/internal/spec"
	"github.com/roach88/crossplot/internal/stats"
)

func quantStats(min, max float64) *stats.FieldStats {
	return &stats.FieldStats{Quantitative: &stats.Quantitative{
		Count: 10, Min: min, Max: max, MinPositive: math.NaN(),
	}}
}

func TestInfer_NilStats(t *testing.T) {
	assert.Nil(t, Infer(Options{}))
	assert.Nil(t, Infer(Options{Stats: &stats.FieldStats{}}))
}

func TestDefaultCount(t *testing.T) {
	assert.Equal(t, 20, DefaultCount(spec.ChannelX))
	assert.Equal(t, 20, DefaultCount(spec.ChannelY2))
	assert.Equal(t, 5, DefaultCount(spec.ChannelColor))
}

func TestQuantitative_NumericScenario(t *testing.T) {
	fs := &stats.FieldStats{Quantitative: &stats.Quantitative{
		Count: 6, Min: 1, Max: 100, Mean: 115.0 / 6, Median: 3.5, MinPositive: 1,
	}}

	info := Infer(Options{Stats: fs, BinCount: 5})
	require.NotNil(t, info)
	q := info.Quantitative
	require.NotNil(t, q)

	assert.Equal(t, 20.0, q.Step)
	assert.Equal(t, 0.0, q.Start)
	assert.Equal(t, 0, q.Bin0)
	assert.Equal(t, 5, q.Bin1)
	assert.False(t, q.HasNA)

	lo, hi, ok := q.Domain()
	require.True(t, ok)
	assert.LessOrEqual(t, lo, 1.0)
	assert.GreaterOrEqual(t, hi, 100.0)
	assert.Equal(t, []float64{0, 120}, info.Hint().Quantitative.Domain)
	assert.Empty(t, info.Hint().Quantitative.Specials)
}

func TestQuantitative_DecimalEdges(t *testing.T) {
	info := Infer(Options{Stats: quantStats(0, 1), BinCount: 5})
	q := info.Quantitative

	assert.Equal(t, 0.2, q.Step)
	assert.Equal(t, Interval{Lo: 0.6, Hi: 0.8}, q.BinIndexToValue(3))
}

func TestQuantitative_SinglePoint(t *testing.T) {
	info := Infer(Options{Stats: quantStats(100, 100)})
	q := info.Quantitative

	assert.Equal(t, q.Bin0, q.Bin1)
	iv := q.BinIndexToValue(q.Bin0)
	assert.LessOrEqual(t, iv.Lo, 100.0)
	assert.Greater(t, iv.Hi, 100.0)
}

func TestQuantitative_Empty(t *testing.T) {
	fs := &stats.FieldStats{Quantitative: &stats.Quantitative{
		Min: math.NaN(), Max: math.NaN(), MinPositive: math.NaN(), CountNonFinite: 3,
	}}
	q := Infer(Options{Stats: fs}).Quantitative

	_, _, ok := q.Domain()
	assert.False(t, ok)
	assert.True(t, q.HasNA)
	h := q.Hint()
	assert.Empty(t, h.Quantitative.Domain)
	assert.Equal(t, []string{NotApplicable}, h.Quantitative.Specials)
}

func TestQuantitative_LogNonPositive(t *testing.T) {
	fs := &stats.FieldStats{Quantitative: &stats.Quantitative{
		Count: 10, Min: -2, Max: 1000, MinPositive: 0.5,
	}}
	q := Infer(Options{Stats: fs, ScaleType: spec.ScaleLog}).Quantitative

	assert.True(t, q.HasNA)
	lo, hi, ok := q.Domain()
	require.True(t, ok)
	assert.Greater(t, lo, 0.0)
	assert.LessOrEqual(t, lo, 0.5)
	assert.GreaterOrEqual(t, hi, 1000.0)
	assert.Equal(t, []string{NotApplicable}, q.Hint().Quantitative.Specials)
	assert.Equal(t, spec.ScaleLog, q.Hint().Quantitative.Type)

	_, ok = q.ValueToBinIndex(-1.0)
	assert.False(t, ok)
}

func TestQuantitative_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		stats     *stats.FieldStats
		scaleType string
		count     int
	}{
		{"linear", quantStats(1, 100), "", 5},
		{"linear fine", quantStats(-3.7, 12.1), "", 20},
		{"linear small", quantStats(0.001, 0.009), "", 20},
		{"negative", quantStats(-1000, -10), "", 7},
		{"log", quantStats(0.01, 50000), spec.ScaleLog, 20},
		{"symlog", quantStats(-5000, 300), spec.ScaleSymlog, 20},
		{"symlog tiny", quantStats(-0.5, 0.5), spec.ScaleSymlog, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Infer(Options{Stats: tt.stats, ScaleType: tt.scaleType, BinCount: tt.count}).Quantitative
			require.LessOrEqual(t, q.Bin0, q.Bin1)
			for i := q.Bin0; i <= q.Bin1; i++ {
				got, ok := q.ValueToBinIndex(q.BinIndexToValue(i))
				require.True(t, ok, "bin %d", i)
				assert.Equal(t, i, got, "bin %d", i)
			}
		})
	}
}

func TestQuantitative_Value(t *testing.T) {
	q := Infer(Options{Stats: quantStats(1, 100), BinCount: 5}).Quantitative

	assert.Equal(t, Interval{Lo: 40, Hi: 60}, q.Value(2.0))
	assert.Equal(t, Interval{Lo: 40, Hi: 60}, q.Value(int64(2)))
	assert.Equal(t, NotApplicable, q.Value(nil))
}

func TestQuantitative_Compare(t *testing.T) {
	q := Infer(Options{Stats: quantStats(1, 100), BinCount: 5}).Quantitative

	assert.Negative(t, q.Compare(Interval{0, 20}, Interval{20, 40}))
	assert.Positive(t, q.Compare(NotApplicable, Interval{80, 100}))
	assert.Zero(t, q.Compare(Interval{0, 20}, Interval{0, 20}))
}

func TestQuantitative_SQL(t *testing.T) {
	q := Infer(Options{Stats: quantStats(1, 100), BinCount: 5}).Quantitative
	c := querysql.NewInlineCompiler()

	sql, err := c.CompileExpr(q.Select(queryir.Col("v")))
	require.NoError(t, err)
	assert.Equal(t,
		`CASE WHEN (NOT isfinite("v"::DOUBLE) OR "v"::DOUBLE IS NULL) THEN NULL ELSE FLOOR((("v"::DOUBLE - 0) / 20)) END`,
		sql)

	pred, _, err := c.CompilePredicate(q.Predicate(queryir.Col("v"), Interval{20, 40}))
	require.NoError(t, err)
	assert.Equal(t, `("v"::DOUBLE >= 20 AND "v"::DOUBLE < 40)`, pred)

	pred, _, err = c.CompilePredicate(q.Predicate(queryir.Col("v"), []any{Interval{0, 20}, NotApplicable}))
	require.NoError(t, err)
	assert.Equal(t,
		`(("v"::DOUBLE >= 0 AND "v"::DOUBLE < 20) OR (NOT isfinite("v"::DOUBLE) OR "v"::DOUBLE IS NULL))`,
		pred)

	assert.Nil(t, q.Predicate(queryir.Col("v")))
}

func TestQuantitative_LogSQL(t *testing.T) {
	fs := &stats.FieldStats{Quantitative: &stats.Quantitative{Count: 3, Min: 1, Max: 1000, MinPositive: 1}}
	q := Infer(Options{Stats: fs, ScaleType: spec.ScaleLog, BinCount: 3}).Quantitative
	c := querysql.NewInlineCompiler()

	sql, err := c.CompileExpr(q.Select(queryir.Col("v")))
	require.NoError(t, err)
	assert.Contains(t, sql, `"v"::DOUBLE <= 0`)
	assert.Contains(t, sql, `LOG10("v"::DOUBLE)`)
}

func TestQuantitative_DuckDB(t *testing.T) {
	ctx := context.Background()
	db, err := conn.OpenDuckDB("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Exec(ctx, "CREATE TABLE t (v DOUBLE)"))
	require.NoError(t, db.Exec(ctx, "INSERT INTO t VALUES (1), (2), (3), (4), (5), (100), ('NaN'::DOUBLE), (NULL)"))

	fs, err := stats.Compute(ctx, db, queryir.Table{Name: "t"}, "v")
	require.NoError(t, err)
	info := Infer(Options{Stats: fs, BinCount: 5})

	bin := info.Select(queryir.Col("v"))
	table, err := conn.Run(ctx, db, queryir.Select{
		Columns: []queryir.Column{
			{Expr: bin, Alias: "bin"},
			{Expr: queryir.Call("COUNT", queryir.Star{}), Alias: "n"},
		},
		From:    queryir.Table{Name: "t"},
		GroupBy: []queryir.Expr{bin},
		OrderBy: []queryir.Order{{Expr: queryir.Col("bin")}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	var got []any
	for row := range table.Len() {
		got = append(got, info.Value(table.Value(row, "bin")))
	}
	assert.ElementsMatch(t, []any{Interval{0, 20}, Interval{100, 120}, NotApplicable}, got)

	selected, err := conn.Run(ctx, db, queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.Call("COUNT", queryir.Star{}), Alias: "n"}},
		From:    queryir.Table{Name: "t"},
		Where:   info.Predicate(queryir.Col("v"), NotApplicable),
	})
	require.NoError(t, err)
	n, _ := selected.Float(0, "n")
	assert.Equal(t, 2.0, n)
}

func nominalStats() *stats.FieldStats {
	return &stats.FieldStats{Nominal: &stats.Nominal{
		Levels:    []stats.Level{{Value: "a", Count: 3}, {Value: "b", Count: 2}, {Value: "c", Count: 1}},
		NullCount: 1,
	}}
}

func TestNominal_StringScenario(t *testing.T) {
	info := Infer(Options{Stats: nominalStats(), BinCount: 2})
	n := info.Nominal
	require.NotNil(t, n)

	assert.Equal(t, []stats.Level{{Value: "a", Count: 3}, {Value: "b", Count: 2}}, n.Levels)
	assert.Equal(t, int64(1), n.NumOtherLevels)
	assert.Equal(t, int64(1), n.OtherCount)
	assert.Equal(t, int64(1), n.NullCount)

	h := info.Hint()
	require.NotNil(t, h.Nominal)
	assert.Equal(t, []string{"a", "b"}, h.Nominal.Domain)
	assert.Equal(t, []string{"(1 others)", "(null)"}, h.Nominal.Specials)
}

func TestNominal_OtherCountProperty(t *testing.T) {
	var levels []stats.Level
	for i := range 40 {
		levels = append(levels, stats.Level{Value: string(rune('A' + i)), Count: int64(100 - i)})
	}
	base := &stats.Nominal{Levels: levels, OtherCount: 7, NumOtherLevels: 3}

	for _, count := range []int{1, 5, 15, 39} {
		n := Infer(Options{Stats: &stats.FieldStats{Nominal: base}, BinCount: count}).Nominal
		var excluded int64
		for _, l := range levels[count:] {
			excluded += l.Count
		}
		assert.Equal(t, int64(len(levels)-count)+3, n.NumOtherLevels)
		assert.Equal(t, excluded+7, n.OtherCount)
		assert.Len(t, n.Levels, count)
	}
}

func TestNominal_DefaultCount(t *testing.T) {
	n := Infer(Options{Stats: nominalStats()}).Nominal
	assert.Len(t, n.Levels, 3)
	assert.Empty(t, n.OtherLabel)
	assert.Equal(t, []string{"(null)"}, n.Hint().Nominal.Specials)
}

func TestOthersLabel(t *testing.T) {
	assert.Equal(t, "(1 others)", OthersLabel(1))
	assert.Equal(t, "(12,345 others)", OthersLabel(12345))
}

func TestNominal_Compare(t *testing.T) {
	n := Infer(Options{Stats: nominalStats(), BinCount: 2}).Nominal

	ordered := []any{"a", "b", "(1 others)", "(null)", "zzz"}
	for i := range len(ordered) - 1 {
		assert.Negative(t, n.Compare(ordered[i], ordered[i+1]), "%v < %v", ordered[i], ordered[i+1])
	}
	assert.Zero(t, n.Compare("a", "a"))
}

func TestNominal_SQL(t *testing.T) {
	n := Infer(Options{Stats: nominalStats(), BinCount: 2}).Nominal
	c := querysql.NewInlineCompiler()

	sql, err := c.CompileExpr(n.Select(queryir.Col("s")))
	require.NoError(t, err)
	assert.Equal(t,
		`CASE WHEN "s" IS NULL THEN '(null)' WHEN "s" IN ('a', 'b') THEN "s" ELSE '(1 others)' END`,
		sql)

	pred, _, err := c.CompilePredicate(n.Predicate(queryir.Col("s"), "a", "(1 others)", "(null)"))
	require.NoError(t, err)
	assert.Equal(t,
		`("s" IN ('a') OR ("s" IS NOT NULL AND "s" NOT IN ('a', 'b')) OR "s" IS NULL)`,
		pred)

	assert.Equal(t, NullLabel, n.Value(nil))
	assert.Equal(t, "b", n.Value("b"))
}

func TestNominal_DuckDB(t *testing.T) {
	ctx := context.Background()
	db, err := conn.OpenDuckDB("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Exec(ctx, "CREATE TABLE t (s VARCHAR)"))
	require.NoError(t, db.Exec(ctx, "INSERT INTO t VALUES ('a'), ('a'), ('a'), ('b'), ('b'), ('c'), (NULL)"))

	fs, err := stats.Compute(ctx, db, queryir.Table{Name: "t"}, "s")
	require.NoError(t, err)
	info := Infer(Options{Stats: fs, BinCount: 2})

	bin := info.Select(queryir.Col("s"))
	table, err := conn.Run(ctx, db, queryir.Select{
		Columns: []queryir.Column{
			{Expr: bin, Alias: "bin"},
			{Expr: queryir.Call("COUNT", queryir.Star{}), Alias: "n"},
		},
		From:    queryir.Table{Name: "t"},
		GroupBy: []queryir.Expr{bin},
	})
	require.NoError(t, err)

	counts := map[any]float64{}
	for row := range table.Len() {
		n, _ := table.Float(row, "n")
		counts[info.Value(table.Value(row, "bin"))] = n
	}
	assert.Equal(t, map[any]float64{"a": 3, "b": 2, "(1 others)": 1, "(null)": 1}, counts)
}

func TestNominal_ReservedLabelLevels(t *testing.T) {
	tests := []struct {
		name   string
		rows   string
		count  int
		bucket string
		want   float64
	}{
		{
			name:   "literal null label",
			rows:   "('a'), ('a'), ('(null)'), (NULL)",
			bucket: NullLabel,
			want:   2,
		},
		{
			name:   "kept level spelled like others",
			rows:   "('x'), ('x'), ('x'), ('(1 others)'), ('(1 others)'), ('y')",
			count:  2,
			bucket: "(1 others)",
			want:   3,
		},
		{
			name:   "literal null label folded into others",
			rows:   "('x'), ('x'), ('y'), ('(null)'), (NULL)",
			count:  1,
			bucket: NullLabel,
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db, err := conn.OpenDuckDB("")
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			require.NoError(t, db.Exec(ctx, "CREATE TABLE t (s VARCHAR)"))
			require.NoError(t, db.Exec(ctx, "INSERT INTO t VALUES "+tt.rows))

			fs, err := stats.Compute(ctx, db, queryir.Table{Name: "t"}, "s")
			require.NoError(t, err)
			info := Infer(Options{Stats: fs, BinCount: tt.count})

			bin := info.Select(queryir.Col("s"))
			grouped, err := conn.Run(ctx, db, queryir.Select{
				Columns: []queryir.Column{
					{Expr: bin, Alias: "bin"},
					{Expr: queryir.Call("COUNT", queryir.Star{}), Alias: "n"},
				},
				From:    queryir.Table{Name: "t"},
				GroupBy: []queryir.Expr{bin},
			})
			require.NoError(t, err)
			shown := map[any]float64{}
			for row := range grouped.Len() {
				n, _ := grouped.Float(row, "n")
				shown[info.Value(grouped.Value(row, "bin"))] = n
			}
			require.Equal(t, tt.want, shown[tt.bucket])

			selected, err := conn.Run(ctx, db, queryir.Select{
				Columns: []queryir.Column{{Expr: queryir.Call("COUNT", queryir.Star{}), Alias: "n"}},
				From:    queryir.Table{Name: "t"},
				Where:   info.Predicate(queryir.Col("s"), tt.bucket),
			})
			require.NoError(t, err)
			n, _ := selected.Float(0, "n")
			assert.Equal(t, tt.want, n)
		})
	}
}
