package binning

import (
	"encoding/json"
	"math"

	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/scale"
	"github.com/roach88/crossplot/internal/spec"
	"github.com/roach88/crossplot/internal/stats"
)

// Interval is the display value of a quantitative bin: [Lo, Hi).
type Interval struct {
	Lo float64
	Hi float64
}

// Bounds implements scale.Bounded.
func (iv Interval) Bounds() (float64, float64) { return iv.Lo, iv.Hi }

// MarshalJSON writes the interval as a two-element array.
func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{iv.Lo, iv.Hi})
}

// Quantitative bins a numeric field into equal-width bins in the scale's
// transformed space. Bin i covers transformed values
// [Start + i*Step, Start + (i+1)*Step).
type Quantitative struct {
	ScaleType string
	Constant  float64
	Start     float64
	Step      float64
	// Bin0 and Bin1 are the lowest and highest occupied bins. Bin1 < Bin0
	// when no value has a bin.
	Bin0, Bin1 int
	// HasNA is set when some value falls in the "n/a" bucket.
	HasNA bool

	// startUnits, factor and power express Start and Step exactly:
	// Step = factor * 10^power, Start = startUnits * Step.
	startUnits int64
	factor     int64
	power      int
}

func inferQuantitative(q *stats.Quantitative, scaleType string, count int, constant float64) *Quantitative {
	if scaleType == "" || scaleType == spec.ScaleBand {
		scaleType = spec.ScaleLinear
	}
	if constant <= 0 {
		constant = scale.DefaultSymlogConstant
	}
	b := &Quantitative{
		ScaleType: scaleType,
		Constant:  constant,
		HasNA:     q.CountNonFinite > 0,
	}

	lo, hi := q.Min, q.Max
	if scaleType == spec.ScaleLog {
		if lo <= 0 {
			b.HasNA = b.HasNA || q.Count > 0
			lo = q.MinPositive
		}
		if hi <= 0 {
			hi = math.NaN()
		}
	}
	if q.Count == 0 || !isFinite(lo) || !isFinite(hi) {
		b.factor, b.power = 1, 0
		b.Step = 1
		b.Bin0, b.Bin1 = 0, -1
		return b
	}

	t0, t1 := b.transform(lo), b.transform(hi)
	span := t1 - t0
	if span <= 0 {
		span = math.Abs(t0)
		if span == 0 {
			span = 1
		}
	}
	b.factor, b.power = niceStep(span / float64(count))
	b.Step = b.unit(1)
	b.startUnits = int64(math.Floor(t0 / b.Step))
	b.Start = b.unit(b.startUnits)
	b.Bin0 = b.index(t0)
	b.Bin1 = b.index(t1)
	return b
}

// niceStep picks a step of 1, 2 or 5 times a power of ten close to raw,
// returned as (factor, power).
func niceStep(raw float64) (int64, int) {
	if raw <= 0 || !isFinite(raw) {
		return 1, 0
	}
	power := int(math.Floor(math.Log10(raw)))
	e := raw / math.Pow(10, float64(power))
	switch {
	case e >= math.Sqrt(50):
		return 1, power + 1
	case e >= math.Sqrt(10):
		return 5, power
	case e >= math.Sqrt(2):
		return 2, power
	}
	return 1, power
}

// unit returns n steps in transformed space, computed so that decimal
// steps produce the nearest float to the decimal edge.
func (b *Quantitative) unit(n int64) float64 {
	units := float64(n * b.factor)
	if b.power < 0 {
		return units / math.Pow(10, float64(-b.power))
	}
	return units * math.Pow(10, float64(b.power))
}

func (b *Quantitative) index(t float64) int {
	return int(math.Floor((t - b.Start) / b.Step))
}

func (b *Quantitative) transform(x float64) float64 {
	switch b.ScaleType {
	case spec.ScaleLog:
		return math.Log10(x)
	case spec.ScaleSymlog:
		return math.Copysign(math.Log1p(math.Abs(x)/b.Constant), x)
	}
	return x
}

func (b *Quantitative) untransform(t float64) float64 {
	switch b.ScaleType {
	case spec.ScaleLog:
		return math.Pow(10, t)
	case spec.ScaleSymlog:
		return math.Copysign(math.Expm1(math.Abs(t))*b.Constant, t)
	}
	return t
}

// edge returns the lower edge of bin i in data space.
func (b *Quantitative) edge(i int) float64 {
	return b.untransform(b.unit(b.startUnits + int64(i)))
}

// BinIndexToValue returns the display interval of bin i.
func (b *Quantitative) BinIndexToValue(i int) Interval {
	return Interval{Lo: b.edge(i), Hi: b.edge(i + 1)}
}

// ValueToBinIndex returns the bin of a data value or an Interval. Intervals
// are located by their transformed midpoint. ok is false for values with no
// bin.
func (b *Quantitative) ValueToBinIndex(v any) (int, bool) {
	switch val := v.(type) {
	case Interval:
		mid := (b.transform(val.Lo) + b.transform(val.Hi)) / 2
		if !isFinite(mid) {
			return 0, false
		}
		return b.index(mid), true
	case float64:
		t := b.transform(val)
		if !isFinite(t) || (b.ScaleType == spec.ScaleLog && val <= 0) {
			return 0, false
		}
		return b.index(t), true
	}
	return 0, false
}

// Domain returns the data-space extent of the occupied bins. ok is false
// when no bin is occupied.
func (b *Quantitative) Domain() (lo, hi float64, ok bool) {
	if b.Bin1 < b.Bin0 {
		return 0, 0, false
	}
	return b.edge(b.Bin0), b.edge(b.Bin1 + 1), true
}

func (b *Quantitative) transformExpr(x queryir.Expr) queryir.Expr {
	switch b.ScaleType {
	case spec.ScaleLog:
		return queryir.Call("LOG10", x)
	case spec.ScaleSymlog:
		return queryir.Binary{
			Op:   queryir.OpMul,
			Left: queryir.Call("SIGN", x),
			Right: queryir.Call("LN", queryir.Binary{
				Op:   queryir.OpAdd,
				Left: queryir.Lit(1),
				Right: queryir.Binary{
					Op:    queryir.OpDiv,
					Left:  queryir.Call("ABS", x),
					Right: queryir.Lit(b.Constant),
				},
			}),
		}
	}
	return x
}

// naPredicate matches values that have no bin.
func (b *Quantitative) naPredicate(x queryir.Expr) queryir.Predicate {
	preds := []queryir.Predicate{
		queryir.IsFinite{Expr: x, Not: true},
		queryir.IsNull{Expr: x},
	}
	if b.ScaleType == spec.ScaleLog {
		preds = append(preds, queryir.Compare{Expr: x, Op: queryir.OpLe, Value: 0})
	}
	return queryir.AnyOf(preds...)
}

// Select returns FLOOR((t(x) - Start) / Step), or NULL for values in the
// "n/a" bucket.
func (b *Quantitative) Select(field queryir.Expr) queryir.Expr {
	x := queryir.Double(field)
	index := queryir.Call("FLOOR", queryir.Binary{
		Op: queryir.OpDiv,
		Left: queryir.Binary{
			Op:    queryir.OpSub,
			Left:  b.transformExpr(x),
			Right: queryir.Lit(b.Start),
		},
		Right: queryir.Lit(b.Step),
	})
	return queryir.Case{
		Whens: []queryir.When{{Cond: b.naPredicate(x), Then: queryir.Lit(nil)}},
		Else:  index,
	}
}

// Value maps a bin index from the query to its Interval, and NULL to "n/a".
func (b *Quantitative) Value(raw any) any {
	f, ok := conn.ToFloat(raw)
	if !ok {
		return NotApplicable
	}
	return b.BinIndexToValue(int(math.Floor(f)))
}

// Predicate selects rows in any of the given buckets. Intervals select
// [Lo, Hi) on the raw field; "n/a" selects the values that have no bin.
func (b *Quantitative) Predicate(field queryir.Expr, values ...any) queryir.Predicate {
	x := queryir.Double(field)
	var preds []queryir.Predicate
	for _, v := range flatten(values) {
		switch val := v.(type) {
		case Interval:
			preds = append(preds, queryir.And{Predicates: []queryir.Predicate{
				queryir.Compare{Expr: x, Op: queryir.OpGe, Value: val.Lo},
				queryir.Compare{Expr: x, Op: queryir.OpLt, Value: val.Hi},
			}})
		case string:
			if val == NotApplicable {
				preds = append(preds, b.naPredicate(x))
			}
		}
	}
	return queryir.AnyOf(preds...)
}

// Hint returns a quantitative hint spanning the occupied bins.
func (b *Quantitative) Hint() scale.Hint {
	h := scale.Quantitative(b.ScaleType)
	if lo, hi, ok := b.Domain(); ok {
		h.Quantitative.Domain = []float64{lo, hi}
	}
	if b.HasNA {
		h.Quantitative.Specials = []string{NotApplicable}
	}
	return h
}

// Compare orders intervals by lower edge with "n/a" last.
func (b *Quantitative) Compare(x, y any) int {
	kx, ky := quantKey(x), quantKey(y)
	switch {
	case kx < ky:
		return -1
	case kx > ky:
		return 1
	}
	return 0
}

func quantKey(v any) float64 {
	switch val := v.(type) {
	case Interval:
		return val.Lo
	case string:
		return math.Inf(1)
	}
	if f, ok := conn.ToFloat(v); ok && !math.IsNaN(f) {
		return f
	}
	return math.Inf(1)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
