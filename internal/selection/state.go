package selection

import (
	"bytes"
	"slices"

	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/spec"
)

// Toggle updates a point selection after a click on v. A plain click
// selects only v, or clears the selection when v was its only value. An
// additive (shift) click adds v or removes it if present.
func Toggle(values []any, v any, additive bool) []any {
	i := slices.IndexFunc(values, func(x any) bool { return equal(x, v) })
	if !additive {
		if i >= 0 && len(values) == 1 {
			return nil
		}
		return []any{v}
	}
	if i >= 0 {
		out := slices.Delete(slices.Clone(values), i, i+1)
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return append(slices.Clone(values), v)
}

// equal compares display values structurally through their canonical JSON
// form, so an interval read back from persisted state matches the live one.
func equal(a, b any) bool {
	ca, err := spec.MarshalCanonical(a)
	if err != nil {
		return false
	}
	cb, err := spec.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

// Predicater builds a predicate from selected display values.
type Predicater interface {
	Predicate(values ...any) queryir.Predicate
}

// PointPredicate returns the predicate of a point selection. An empty
// selection yields nil, meaning no filter.
func PointPredicate(p Predicater, values []any) queryir.Predicate {
	if len(values) == 0 {
		return nil
	}
	return p.Predicate(values...)
}

// Range is a closed brush extent in data space.
type Range [2]float64

// Normalized returns the range with its bounds in ascending order.
func (r Range) Normalized() Range {
	if r[0] > r[1] {
		return Range{r[1], r[0]}
	}
	return r
}

// RangePredicate selects field values inside r.
func RangePredicate(field string, r Range) queryir.Predicate {
	if field == "" {
		return nil
	}
	r = r.Normalized()
	return queryir.Between{Expr: queryir.Col(field), Lo: r[0], Hi: r[1]}
}

// IntervalPredicate combines the brushed ranges of each axis. Axes without
// a range or without a field are unconstrained; nil means no filter.
func IntervalPredicate(fields map[spec.Channel]string, ranges map[spec.Channel]Range) queryir.Predicate {
	var preds []queryir.Predicate
	for _, ch := range []spec.Channel{spec.ChannelX, spec.ChannelY} {
		r, ok := ranges[ch]
		if !ok {
			continue
		}
		preds = append(preds, RangePredicate(fields[ch], r))
	}
	return queryir.AllOf(preds...)
}
