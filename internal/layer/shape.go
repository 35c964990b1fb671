package layer

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"

	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/spec"
)

// Row is one render-ready record keyed by channel.
type Row map[spec.Channel]any

// Span is a stacked extent along the value axis.
type Span struct {
	Start float64
	End   float64
}

// Bounds implements scale.Bounded.
func (s Span) Bounds() (float64, float64) { return s.Start, s.End }

// MarshalJSON writes the span as a two-element array.
func (s Span) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{s.Start, s.End})
}

// Key is a comparable tuple of channel values used to group rows. Slots
// follow the order of the channels it was built from.
type Key [9]any

// KeyOf builds the grouping key of r over chans. Values that are not
// comparable are replaced by their printed form.
func KeyOf(r Row, chans ...spec.Channel) Key {
	var k Key
	for i, ch := range chans {
		if i == len(k) {
			break
		}
		k[i] = keyValue(r[ch])
	}
	return k
}

func keyValue(v any) any {
	if v == nil {
		return nil
	}
	if !reflect.TypeOf(v).Comparable() {
		return fmt.Sprintf("%#v", v)
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		// NaN != NaN would give every NaN row its own group.
		return "NaN"
	}
	return v
}

// Order compares two rows; the first non-zero Order in a list wins.
type Order func(a, b Row) int

// Stack replaces each row's value on axis with its cumulative Span within
// the group of rows sharing a value on the opposite axis. Groups are
// ordered by orders, falling back to the original row order. Non-finite
// values get a nil span and do not contribute to the running sum.
func Stack(rows []Row, axis spec.Channel, orders []Order) []Row {
	if len(rows) == 0 {
		return rows
	}
	other := axis.Opposite()

	groups := make(map[Key][]int)
	var keys []Key
	for i, r := range rows {
		k := KeyOf(r, other)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}

	out := make([]Row, len(rows))
	for _, k := range keys {
		idx := groups[k]
		slices.SortStableFunc(idx, func(a, b int) int {
			for _, o := range orders {
				if c := o(rows[a], rows[b]); c != 0 {
					return c
				}
			}
			return a - b
		})

		var acc float64
		for _, i := range idx {
			r := maps.Clone(rows[i])
			v, ok := conn.ToFloat(rows[i][axis])
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				r[axis] = nil
			} else {
				r[axis] = Span{Start: acc, End: acc + v}
				acc += v
			}
			out[i] = r
		}
	}
	return out
}

// CompleteCross inserts rows so that every distinct value of by occurs
// with every distinct combination of the other non-field channels. Inserted
// rows carry dflt on field. Existing rows keep their order and inserted rows
// follow them.
func CompleteCross(rows []Row, by, field spec.Channel, dflt any) []Row {
	if len(rows) == 0 {
		return rows
	}
	var dims []spec.Channel
	for _, ch := range spec.Channels {
		if ch == by || ch == field {
			continue
		}
		for _, r := range rows {
			if _, ok := r[ch]; ok {
				dims = append(dims, ch)
				break
			}
		}
	}

	byValues := make(map[any]bool)
	var bys []any
	combos := make(map[Key]Row)
	var comboKeys []Key
	present := make(map[[2]Key]bool)

	for _, r := range rows {
		bv := keyValue(r[by])
		if !byValues[bv] {
			byValues[bv] = true
			bys = append(bys, r[by])
		}
		k := KeyOf(r, dims...)
		if _, ok := combos[k]; !ok {
			combos[k] = r
			comboKeys = append(comboKeys, k)
		}
		present[[2]Key{k, {bv}}] = true
	}

	out := slices.Clone(rows)
	for _, k := range comboKeys {
		for _, bv := range bys {
			if present[[2]Key{k, {keyValue(bv)}}] {
				continue
			}
			r := make(Row, len(dims)+2)
			for _, ch := range dims {
				r[ch] = combos[k][ch]
			}
			r[by] = bv
			r[field] = dflt
			out = append(out, r)
		}
	}
	return out
}
