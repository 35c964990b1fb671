package binning

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/scale"
	"github.com/roach88/crossplot/internal/stats"
)

var labelPrinter = message.NewPrinter(language.English)

// OthersLabel returns the label of the bucket that folds n levels.
func OthersLabel(n int64) string {
	return labelPrinter.Sprintf("(%d others)", n)
}

// Nominal clips a string field to its most frequent levels. Remaining
// levels fold into one "(N others)" bucket and nulls into "(null)".
type Nominal struct {
	Levels         []stats.Level
	OtherCount     int64
	NumOtherLevels int64
	NullCount      int64
	OtherLabel     string

	rank map[string]int
}

func inferNominal(n *stats.Nominal, count int) *Nominal {
	keep := min(count, len(n.Levels))
	b := &Nominal{
		Levels:         append([]stats.Level(nil), n.Levels[:keep]...),
		OtherCount:     n.OtherCount,
		NumOtherLevels: n.NumOtherLevels + int64(len(n.Levels)-keep),
		NullCount:      n.NullCount,
		rank:           make(map[string]int, keep),
	}
	for _, l := range n.Levels[keep:] {
		b.OtherCount += l.Count
	}
	for i, l := range b.Levels {
		b.rank[l.Value] = i
	}
	if b.NumOtherLevels > 0 {
		b.OtherLabel = OthersLabel(b.NumOtherLevels)
	}
	return b
}

func (b *Nominal) kept(s string) bool {
	for _, l := range b.Levels {
		if l.Value == s {
			return true
		}
	}
	return false
}

func (b *Nominal) values() []any {
	out := make([]any, len(b.Levels))
	for i, l := range b.Levels {
		out[i] = l.Value
	}
	return out
}

// Select maps nulls to "(null)", kept levels to themselves and everything
// else to the others label.
func (b *Nominal) Select(field queryir.Expr) queryir.Expr {
	whens := []queryir.When{{Cond: queryir.IsNull{Expr: field}, Then: queryir.Lit(NullLabel)}}
	if b.NumOtherLevels == 0 {
		return queryir.Case{Whens: whens, Else: field}
	}
	whens = append(whens, queryir.When{
		Cond: queryir.In{Expr: field, Values: b.values()},
		Then: field,
	})
	return queryir.Case{Whens: whens, Else: queryir.Lit(b.OtherLabel)}
}

// Value returns the bucket label of a query result.
func (b *Nominal) Value(raw any) any {
	if raw == nil {
		return NullLabel
	}
	return raw
}

// Predicate selects rows in any of the given buckets. A bucket matches
// exactly the rows Select maps to its label, so a string level spelled like
// "(null)" or the others label shares that bucket's predicate.
func (b *Nominal) Predicate(field queryir.Expr, values ...any) queryir.Predicate {
	var (
		levels []any
		preds  []queryir.Predicate
	)
	for _, v := range flatten(values) {
		s, ok := v.(string)
		switch {
		case !ok:
			continue
		case s == NullLabel:
			preds = append(preds, queryir.IsNull{Expr: field})
			if b.NumOtherLevels == 0 || b.kept(s) {
				levels = append(levels, s)
			}
		case b.OtherLabel != "" && s == b.OtherLabel:
			preds = append(preds, queryir.And{Predicates: []queryir.Predicate{
				queryir.IsNull{Expr: field, Not: true},
				queryir.In{Expr: field, Values: b.values(), Not: true},
			}})
			if b.kept(s) {
				levels = append(levels, s)
			}
		default:
			levels = append(levels, s)
		}
	}
	if len(levels) > 0 {
		preds = append([]queryir.Predicate{queryir.In{Expr: field, Values: levels}}, preds...)
	}
	return queryir.AnyOf(preds...)
}

// Hint returns a nominal hint listing the kept levels in rank order with the
// others and null buckets as specials.
func (b *Nominal) Hint() scale.Hint {
	domain := make([]string, len(b.Levels))
	for i, l := range b.Levels {
		domain[i] = l.Value
	}
	var specials []string
	if b.NumOtherLevels > 0 {
		specials = append(specials, b.OtherLabel)
	}
	if b.NullCount > 0 {
		specials = append(specials, NullLabel)
	}
	return scale.Nominal(domain, specials...)
}

// Compare orders by rank, then the others bucket, then null, then any
// unknown value.
func (b *Nominal) Compare(x, y any) int {
	return b.order(x) - b.order(y)
}

func (b *Nominal) order(v any) int {
	s, ok := v.(string)
	if !ok {
		if v == nil {
			return len(b.Levels) + 1
		}
		return len(b.Levels) + 2
	}
	if r, ok := b.rank[s]; ok {
		return r
	}
	switch {
	case b.OtherLabel != "" && s == b.OtherLabel:
		return len(b.Levels)
	case s == NullLabel:
		return len(b.Levels) + 1
	}
	return len(b.Levels) + 2
}
