// Package binning turns field statistics into a discretization plan: the
// SQL expression that assigns each row to a bin, the display value of each
// bin, predicates selecting bins, scale hints and a stable bin order.
package binning

import (
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/scale"
	"github.com/roach88/crossplot/internal/spec"
	"github.com/roach88/crossplot/internal/stats"
)

// Bin counts used when an encoding does not set one.
const (
	DefaultPositionBins = 20
	DefaultOtherBins    = 5
	DefaultNominalBins  = 15
)

// NotApplicable labels the bucket of quantitative values that have no bin.
const NotApplicable = "n/a"

// NullLabel labels the bucket of null string values.
const NullLabel = "(null)"

// DefaultCount returns the quantitative bin count for a channel.
func DefaultCount(ch spec.Channel) int {
	if ch.IsPosition() {
		return DefaultPositionBins
	}
	return DefaultOtherBins
}

// Options selects the statistics and policy for Infer.
type Options struct {
	Stats *stats.FieldStats
	// ScaleType is "linear" (default), "log" or "symlog".
	ScaleType string
	// BinCount <= 0 uses DefaultPositionBins for quantitative fields and
	// DefaultNominalBins for nominal ones.
	BinCount int
	// Constant is the symlog constant; <= 0 uses the scale default.
	Constant float64
}

// Info is a discretization plan for one field. Exactly one of Quantitative
// and Nominal is set.
type Info struct {
	Quantitative *Quantitative
	Nominal      *Nominal
}

// Infer builds a plan. It returns nil when there are no statistics.
func Infer(opts Options) *Info {
	if opts.Stats == nil {
		return nil
	}
	switch {
	case opts.Stats.Quantitative != nil:
		count := opts.BinCount
		if count <= 0 {
			count = DefaultPositionBins
		}
		return &Info{Quantitative: inferQuantitative(opts.Stats.Quantitative, opts.ScaleType, count, opts.Constant)}
	case opts.Stats.Nominal != nil:
		count := opts.BinCount
		if count <= 0 {
			count = DefaultNominalBins
		}
		return &Info{Nominal: inferNominal(opts.Stats.Nominal, count)}
	}
	return nil
}

// Select returns the expression assigning a row's field value to a bin.
func (i *Info) Select(field queryir.Expr) queryir.Expr {
	if i.Nominal != nil {
		return i.Nominal.Select(field)
	}
	return i.Quantitative.Select(field)
}

// Value maps a query result of Select to its display value.
func (i *Info) Value(raw any) any {
	if i.Nominal != nil {
		return i.Nominal.Value(raw)
	}
	return i.Quantitative.Value(raw)
}

// Predicate selects rows whose bin display value is one of values. Each
// value may itself be a []any of display values. It returns nil for no
// values.
func (i *Info) Predicate(field queryir.Expr, values ...any) queryir.Predicate {
	if i.Nominal != nil {
		return i.Nominal.Predicate(field, values...)
	}
	return i.Quantitative.Predicate(field, values...)
}

// Hint returns the scale hint for the binned channel.
func (i *Info) Hint() scale.Hint {
	if i.Nominal != nil {
		return i.Nominal.Hint()
	}
	return i.Quantitative.Hint()
}

// Compare orders display values: negative when a sorts before b.
func (i *Info) Compare(a, b any) int {
	if i.Nominal != nil {
		return i.Nominal.Compare(a, b)
	}
	return i.Quantitative.Compare(a, b)
}

// Default is the display value backfilled for rows missing the channel.
func (i *Info) Default() any {
	if i.Nominal != nil {
		return NullLabel
	}
	return NotApplicable
}

// flatten expands nested []any selections into one list.
func flatten(values []any) []any {
	var out []any
	for _, v := range values {
		if list, ok := v.([]any); ok {
			out = append(out, flatten(list)...)
			continue
		}
		out = append(out, v)
	}
	return out
}
