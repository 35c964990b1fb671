package scale

import (
	"math"
	"slices"

	moremath "github.com/aclements/go-moremath/scale"

	"github.com/roach88/crossplot/internal/spec"
)

// DefaultTickCount is used when a caller asks for zero ticks.
const DefaultTickCount = 5

// Ticks returns up to about n tick values: float64 values for quantitative
// scales, the categories for band scales.
func (s Concrete) Ticks(n int) []any {
	if s.cfg.IsBand() {
		out := make([]any, len(s.cfg.Categories))
		for i, c := range s.cfg.Categories {
			out[i] = c
		}
		return out
	}
	if n <= 0 {
		n = DefaultTickCount
	}
	var ticks []float64
	lo, hi := s.cfg.Domain[0], s.cfg.Domain[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	switch s.cfg.Type {
	case spec.ScaleLog:
		ticks = logTicks(lo, hi, n)
	case spec.ScaleSymlog:
		ticks = SymlogTicks(lo, hi, s.constant(), n)
	default:
		ticks = linearTicks(lo, hi, n)
	}
	out := make([]any, len(ticks))
	for i, t := range ticks {
		out[i] = t
	}
	return out
}

func linearTicks(lo, hi float64, n int) []float64 {
	if lo == hi {
		return []float64{lo}
	}
	lin := moremath.Linear{Min: lo, Max: hi, Base: 10}
	major, _ := lin.Ticks(moremath.TickOptions{Max: n})
	return major
}

func logTicks(lo, hi float64, n int) []float64 {
	if lo <= 0 || hi <= 0 {
		return nil
	}
	if lo == hi {
		return []float64{lo}
	}
	l, err := moremath.NewLog(lo, hi, 10)
	if err != nil {
		return nil
	}
	major, _ := l.Ticks(moremath.TickOptions{Max: n})
	return major
}

// SymlogTicks generates ticks for a symlog domain with linear-region
// constant c. Inside [-SymlogLinearFactor*c, SymlogLinearFactor*c] ticks are
// linear; each side beyond it gets independent log ticks. Zero is included
// whenever either outer region is present and the domain spans it; when both
// outer regions are empty the result is plain linear ticks.
func SymlogTicks(lo, hi, c float64, n int) []float64 {
	bound := SymlogLinearFactor * c
	hasNeg := lo < -bound
	hasPos := hi > bound
	if !hasNeg && !hasPos {
		return linearTicks(lo, hi, n)
	}

	var ticks []float64
	innerLo, innerHi := math.Max(lo, -bound), math.Min(hi, bound)
	if innerLo < innerHi {
		ticks = append(ticks, linearTicks(innerLo, innerHi, n)...)
	}
	if lo <= 0 && hi >= 0 {
		ticks = append(ticks, 0)
	}
	if hasPos {
		ticks = append(ticks, logTicks(bound, hi, n)...)
	}
	if hasNeg {
		for _, t := range logTicks(bound, -lo, n) {
			ticks = append(ticks, -t)
		}
	}
	slices.Sort(ticks)
	return slices.Compact(ticks)
}
