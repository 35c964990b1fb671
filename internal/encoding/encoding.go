// Package encoding compiles one channel encoding of a layer into the pieces
// the layer query needs: a select expression, whether it is a grouping key,
// a scale hint and the mapping from query results to display values.
//
// Resolution is two-pass. Prescan inspects the whole layer once and the
// resulting Flags are passed to every Resolve call, so a channel's
// resolution depends only on its own encoding and the flags.
package encoding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/crossplot/internal/binning"
	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/scale"
	"github.com/roach88/crossplot/internal/spec"
	"github.com/roach88/crossplot/internal/stats"
)

// StatsSource supplies field statistics, typically a *stats.Cache.
type StatsSource interface {
	Get(ctx context.Context, src queryir.Source, field string) (*stats.FieldStats, error)
}

// Flags is the result of the layer pre-scan.
type Flags struct {
	// Grouped is set when any encoding of the layer aggregates or
	// explicitly bins. Position fields are then binned implicitly and raw
	// fields become grouping keys.
	Grouped bool
}

// Prescan computes Flags for a layer.
func Prescan(l spec.Layer) Flags {
	var f Flags
	for _, enc := range l.Encoding {
		if enc.Kind() == spec.KindAggregate || enc.IsBinned() {
			f.Grouped = true
		}
	}
	return f
}

// Env carries what resolution needs beyond the encoding itself.
type Env struct {
	Stats  StatsSource
	Scales map[spec.Channel]spec.ScaleSpec
}

func (e Env) scaleFor(ch spec.Channel) spec.ScaleSpec {
	return e.Scales[ch.Axis()]
}

// Resolved is a compiled channel.
type Resolved struct {
	Channel spec.Channel
	Kind    spec.EncodingKind

	// Select is the expression computing the channel, aliased to the
	// channel name. Nil for value encodings.
	Select queryir.Expr
	// GroupBy marks Select as a grouping key.
	GroupBy bool
	// Aggregate marks Select as an aggregate. Unnest is set for eCDF
	// aggregates, which produce several rows per group.
	Aggregate bool
	Unnest    bool
	// Op is the aggregate name of an aggregate encoding.
	Op string
	// Normalize asks the layer to divide the channel by its sum over the
	// orthogonal axis.
	Normalize bool

	Field string
	Title string
	Hint  scale.Hint

	// Binning is set for binned fields.
	Binning *binning.Info
	// Constant holds the value of a value encoding.
	Constant any
}

// Value maps a raw query result to the channel's display value.
func (r *Resolved) Value(raw any) any {
	switch {
	case r.Kind == spec.KindValue:
		return r.Constant
	case r.Binning != nil:
		return r.Binning.Value(raw)
	}
	return raw
}

// Default is the value backfilled for rows missing the channel.
func (r *Resolved) Default() any {
	switch {
	case r.Kind == spec.KindValue:
		return r.Constant
	case r.Binning != nil:
		return r.Binning.Default()
	case r.Op == spec.AggCount:
		return int64(0)
	}
	return nil
}

// Compare orders display values of the channel. Channels without a
// binning order compare numbers, then strings, then everything else as
// equal.
func (r *Resolved) Compare(a, b any) int {
	if r.Binning != nil {
		return r.Binning.Compare(a, b)
	}
	return compareValues(a, b)
}

// Predicate selects rows whose channel value is one of values. It returns
// nil when the channel cannot be selected on.
func (r *Resolved) Predicate(values ...any) queryir.Predicate {
	if r.Field == "" || r.Aggregate {
		return nil
	}
	field := queryir.Col(r.Field)
	if r.Binning != nil {
		return r.Binning.Predicate(field, values...)
	}
	var flat []any
	for _, v := range values {
		if list, ok := v.([]any); ok {
			flat = append(flat, list...)
			continue
		}
		flat = append(flat, v)
	}
	if len(flat) == 0 {
		return nil
	}
	return queryir.In{Expr: field, Values: flat}
}

// Resolve compiles one encoding. Specification problems are returned as
// *SpecError and the caller drops the channel; query failures while
// computing statistics are wrapped and returned.
func Resolve(ctx context.Context, env Env, src queryir.Source, ch spec.Channel, enc spec.Encoding, flags Flags) (*Resolved, error) {
	if err := enc.Err(); err != nil {
		return nil, NewSpecError(ErrCodeInvalidEncoding, ch, "%v", err)
	}
	override := env.scaleFor(ch)

	switch enc.Kind() {
	case spec.KindValue:
		return resolveValue(ch, enc.Value.Value), nil
	case spec.KindAggregate:
		return resolveAggregate(ch, enc.Aggregate, override)
	}

	field := enc.Field
	binned := field.Bin != nil || (flags.Grouped && ch.IsPosition())
	if !binned {
		return &Resolved{
			Channel: ch,
			Kind:    spec.KindField,
			Select:  queryir.Col(field.Field),
			GroupBy: flags.Grouped,
			Field:   field.Field,
			Title:   field.Field,
			Hint:    rawHint(override),
		}, nil
	}

	fs, err := env.Stats.Get(ctx, src, field.Field)
	if err != nil {
		return nil, fmt.Errorf("stats for %q: %w", field.Field, err)
	}
	if fs == nil {
		return nil, NewSpecError(ErrCodeUnsupportedField, ch, "field %q has a type that cannot be binned", field.Field)
	}
	count := 0
	if field.Bin != nil {
		count = field.Bin.Count
	}
	if count == 0 && fs.Quantitative != nil {
		count = binning.DefaultCount(ch)
	}
	info := binning.Infer(binning.Options{
		Stats:     fs,
		ScaleType: override.Type,
		BinCount:  count,
		Constant:  override.Constant,
	})
	if info == nil {
		return nil, NewSpecError(ErrCodeUnsupportedField, ch, "field %q has no statistics", field.Field)
	}
	slog.Debug("binned channel",
		"channel", ch,
		"field", field.Field,
		"nominal", info.Nominal != nil,
		"count", count)

	return &Resolved{
		Channel: ch,
		Kind:    spec.KindField,
		Select:  info.Select(queryir.Col(field.Field)),
		GroupBy: true,
		Field:   field.Field,
		Title:   field.Field,
		Hint:    info.Hint(),
		Binning: info,
	}, nil
}

func resolveAggregate(ch spec.Channel, agg *spec.AggregateEncoding, override spec.ScaleSpec) (*Resolved, error) {
	expr, err := aggregateExpr(ch, agg)
	if err != nil {
		return nil, err
	}
	r := &Resolved{
		Channel:   ch,
		Kind:      spec.KindAggregate,
		Select:    expr,
		Aggregate: true,
		Unnest:    IsEcdf(agg.Aggregate),
		Op:        agg.Aggregate,
		Normalize: agg.Normalize,
		Field:     agg.Field,
		Title:     aggregateTitle(agg),
	}
	h := &scale.QuantitativeHint{Type: quantType(override.Type)}
	switch agg.Aggregate {
	case spec.AggCount, spec.AggSum:
		h.IncludeZero = true
	case spec.AggEcdfRank:
		h.Domain = []float64{0, 1}
	}
	if agg.Normalize {
		h.Domain = []float64{0, 1}
	}
	r.Hint = scale.Hint{Quantitative: h}
	return r, nil
}

func resolveValue(ch spec.Channel, v any) *Resolved {
	r := &Resolved{Channel: ch, Kind: spec.KindValue, Constant: v}
	switch val := v.(type) {
	case string:
		r.Hint = scale.Nominal([]string{val})
	default:
		if f, ok := conn.ToFloat(v); ok {
			r.Hint = scale.Quantitative("", f, f)
		}
	}
	return r
}

func aggregateTitle(agg *spec.AggregateEncoding) string {
	if agg.Field == "" {
		return agg.Aggregate
	}
	return agg.Aggregate + "(" + agg.Field + ")"
}

// rawHint lets an explicit quantitative scale type through. Without one the
// observed values decide between a band and a quantitative scale.
func rawHint(override spec.ScaleSpec) scale.Hint {
	if t := quantType(override.Type); t != "" {
		return scale.Quantitative(t)
	}
	return scale.Hint{}
}

// quantType keeps an explicit band override out of quantitative hints.
func quantType(t string) string {
	if t == spec.ScaleBand {
		return ""
	}
	return t
}

func compareValues(a, b any) int {
	fa, oka := conn.ToFloat(a)
	fb, okb := conn.ToFloat(b)
	switch {
	case oka && okb:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case oka:
		return -1
	case okb:
		return 1
	}
	sa, oka := a.(string)
	sb, okb := b.(string)
	switch {
	case oka && okb:
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	case oka:
		return -1
	case okb:
		return 1
	}
	return 0
}
