// Package scale infers per-channel scale configurations from hints and
// observed data, and binds them to pixel ranges.
package scale

import (
	"math"
	"slices"
	"strings"
)

// Hint is a partial description of a channel's scale, contributed by one
// encoding before data is known. Exactly one of Quantitative and Nominal
// is set on a non-empty hint; the zero Hint is the identity for Merge.
type Hint struct {
	Quantitative *QuantitativeHint
	Nominal      *NominalHint
}

// QuantitativeHint describes a continuous channel.
type QuantitativeHint struct {
	// Type is the candidate scale type, or "" to defer to the spec or the
	// default.
	Type string
	// Domain holds values the domain must include. Only its finite extent
	// is significant.
	Domain []float64
	// Specials are labels rendered in the reserved band ("n/a").
	Specials []string
	// IncludeZero requests a domain clamped to include zero.
	IncludeZero bool
}

// NominalHint describes a categorical channel.
type NominalHint struct {
	// Domain lists categories in display order.
	Domain []string
	// Specials are labels rendered in the reserved band ("(null)",
	// "(N others)").
	Specials []string
}

// Quantitative returns a hint for a continuous channel.
func Quantitative(typ string, domain ...float64) Hint {
	return Hint{Quantitative: &QuantitativeHint{Type: typ, Domain: domain}}
}

// Nominal returns a hint for a categorical channel.
func Nominal(domain []string, specials ...string) Hint {
	return Hint{Nominal: &NominalHint{Domain: domain, Specials: specials}}
}

// IsZero reports whether the hint carries no information.
func (h Hint) IsZero() bool {
	return h.Quantitative == nil && h.Nominal == nil
}

// Merge combines two hints. The result's domain membership does not depend
// on argument order or grouping. A nominal hint absorbs a quantitative one:
// once any encoding treats the channel as categorical, it is categorical.
func (h Hint) Merge(o Hint) Hint {
	switch {
	case h.IsZero():
		return o
	case o.IsZero():
		return h
	case h.Nominal != nil && o.Nominal != nil:
		return Hint{Nominal: h.Nominal.merge(o.Nominal)}
	case h.Nominal != nil:
		return h
	case o.Nominal != nil:
		return o
	}
	return Hint{Quantitative: h.Quantitative.merge(o.Quantitative)}
}

// MergeAll folds Merge over hints.
func MergeAll(hints ...Hint) Hint {
	var out Hint
	for _, h := range hints {
		out = out.Merge(h)
	}
	return out
}

// typeRank orders candidate types so conflicting candidates resolve the
// same way regardless of merge order.
var typeRank = map[string]int{"": 0, "linear": 1, "log": 2, "symlog": 3}

func (q *QuantitativeHint) merge(o *QuantitativeHint) *QuantitativeHint {
	out := &QuantitativeHint{
		Type:        q.Type,
		IncludeZero: q.IncludeZero || o.IncludeZero,
		Specials:    mergeSpecials(q.Specials, o.Specials),
	}
	if typeRank[o.Type] > typeRank[out.Type] {
		out.Type = o.Type
	}
	lo, hi, ok := finiteExtent(append(slices.Clone(q.Domain), o.Domain...))
	if ok {
		out.Domain = []float64{lo, hi}
		if lo == hi {
			out.Domain = []float64{lo}
		}
	}
	return out
}

func (n *NominalHint) merge(o *NominalHint) *NominalHint {
	out := &NominalHint{Specials: mergeSpecials(n.Specials, o.Specials)}
	seen := make(map[string]bool, len(n.Domain)+len(o.Domain))
	for _, d := range [][]string{n.Domain, o.Domain} {
		for _, v := range d {
			if !seen[v] {
				seen[v] = true
				out.Domain = append(out.Domain, v)
			}
		}
	}
	return out
}

// mergeSpecials unions special labels into canonical order: "(N others)"
// labels, then "(null)", then "n/a", then anything else alphabetically.
func mergeSpecials(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(slices.Clone(a), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(x, y string) int {
		if rx, ry := specialRank(x), specialRank(y); rx != ry {
			return rx - ry
		}
		return strings.Compare(x, y)
	})
	return out
}

func specialRank(s string) int {
	switch {
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, " others)"):
		return 0
	case s == "(null)":
		return 1
	case s == "n/a":
		return 2
	}
	return 3
}

func finiteExtent(xs []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
		ok = true
	}
	return lo, hi, ok
}
