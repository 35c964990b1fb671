// Package layer builds the query of one mark layer and shapes its results
// into render-ready rows.
package layer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/encoding"
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/scale"
	"github.com/roach88/crossplot/internal/spec"
)

// Built is a compiled layer.
type Built struct {
	Index  int
	Layer  spec.Layer
	Source queryir.Source

	// Channels lists the resolved channels in resolution order.
	Channels []spec.Channel
	Resolved map[spec.Channel]*encoding.Resolved
	// Hints holds the merged scale hint per axis channel.
	Hints map[spec.Channel]scale.Hint
	// Filtered is set when the layer reads the shared cross-filter.
	Filtered bool
	// Stacked is the axis bars or areas stack along, or "".
	Stacked spec.Channel
}

// SourceFor resolves a layer source against the chart's table. A bare
// identifier names a table; anything else is inline SQL that may contain
// the filter placeholder.
func SourceFor(chart queryir.Source, layerSource string) queryir.Source {
	switch {
	case layerSource == "":
		return chart
	case spec.IsTableSource(layerSource):
		return queryir.Table{Name: layerSource}
	}
	return queryir.SQLSource{SQL: layerSource, Placeholder: spec.FilterPlaceholder}
}

// Build resolves every encoding of l. Encodings that fail validation are
// logged and dropped. A layer whose mark cannot be drawn from what remains
// is returned as a *encoding.SpecError; the caller omits it. Statistics
// query failures are returned wrapped.
func Build(ctx context.Context, env encoding.Env, chart queryir.Source, l spec.Layer, index int) (*Built, error) {
	b := &Built{
		Index:    index,
		Layer:    l,
		Source:   SourceFor(chart, l.Source),
		Resolved: make(map[spec.Channel]*encoding.Resolved),
		Hints:    make(map[spec.Channel]scale.Hint),
		Filtered: l.ParticipatesInFilter(),
	}
	flags := encoding.Prescan(l)

	for _, ch := range spec.Channels {
		enc, ok := l.Encoding[ch]
		if !ok {
			continue
		}
		r, err := encoding.Resolve(ctx, env, b.Source, ch, enc, flags)
		if err != nil {
			var se *encoding.SpecError
			if errors.As(err, &se) {
				se.Layer = index
				slog.Warn("dropping encoding",
					"layer", index,
					"channel", ch,
					"code", se.Code,
					"error", se.Message)
				continue
			}
			return nil, fmt.Errorf("layer %d channel %s: %w", index, ch, err)
		}
		b.Channels = append(b.Channels, ch)
		b.Resolved[ch] = r
		axis := ch.Axis()
		b.Hints[axis] = b.Hints[axis].Merge(r.Hint)
	}

	if se := checkMark(l.Mark, b.Resolved); se != nil {
		se.Layer = index
		return nil, se
	}
	b.Stacked = valueAxis(l.Mark, b.Resolved)

	slog.Debug("layer built",
		"layer", index,
		"mark", l.Mark,
		"channels", len(b.Channels),
		"filtered", b.Filtered,
		"stacked", b.Stacked)
	return b, nil
}

// IsStatic reports whether the layer has no query: every channel is a
// constant.
func (b *Built) IsStatic() bool {
	for _, ch := range b.Channels {
		if b.Resolved[ch].Select != nil {
			return false
		}
	}
	return true
}

// StaticRows returns the single row of a static layer.
func (b *Built) StaticRows() []Row {
	r := make(Row, len(b.Channels))
	for _, ch := range b.Channels {
		r[ch] = b.Resolved[ch].Constant
	}
	return []Row{r}
}

// Query builds the layer query under filter. filter is applied only when
// the layer reads the cross-filter: inside a custom source at its
// placeholder, or as the WHERE clause otherwise.
func (b *Built) Query(filter queryir.Predicate) queryir.Query {
	var (
		cols    []queryir.Column
		groupBy []queryir.Expr
		orderBy []queryir.Order
		norm    []spec.Channel
	)
	for _, ch := range b.Channels {
		r := b.Resolved[ch]
		if r.Select == nil {
			continue
		}
		cols = append(cols, queryir.Column{Expr: r.Select, Alias: string(ch)})
		if r.GroupBy {
			groupBy = append(groupBy, r.Select)
			orderBy = append(orderBy, queryir.Order{Expr: queryir.Col(string(ch))})
		}
		if r.Normalize {
			norm = append(norm, ch)
		}
	}

	src := b.Source
	var where queryir.Predicate
	if b.Filtered {
		if s, ok := src.(queryir.SQLSource); ok && strings.Contains(s.SQL, s.Placeholder) {
			s.Filter = filter
			src = s
		} else {
			where = filter
		}
	}

	sel := queryir.Select{
		Columns: cols,
		From:    src,
		Where:   where,
		GroupBy: groupBy,
	}
	if len(norm) == 0 {
		sel.OrderBy = orderBy
		return sel
	}

	rep := queryir.Replace{From: sel, OrderBy: orderBy}
	for _, ch := range norm {
		var partition []queryir.Expr
		if o := ch.Opposite(); o != "" && b.selects(o) {
			partition = append(partition, queryir.Col(string(o)))
		}
		col := queryir.Col(string(ch))
		rep.Columns = append(rep.Columns, queryir.Column{
			Expr: queryir.Binary{
				Op:   queryir.OpDiv,
				Left: queryir.Double(col),
				Right: queryir.Window{
					Func:        queryir.Call("SUM", col),
					PartitionBy: partition,
				},
			},
			Alias: string(ch),
		})
	}
	return rep
}

func (b *Built) selects(ch spec.Channel) bool {
	r, ok := b.Resolved[ch]
	return ok && r.Select != nil
}

// Rows maps a query result to rows, backfills channels missing from the
// result and applies mark shaping.
func (b *Built) Rows(t *conn.Table) []Row {
	rows := make([]Row, t.Len())
	for i := range rows {
		r := make(Row, len(b.Channels))
		for _, ch := range b.Channels {
			res := b.Resolved[ch]
			switch {
			case res.Select == nil:
				r[ch] = res.Constant
			case t.Index(string(ch)) < 0:
				r[ch] = res.Default()
			default:
				r[ch] = res.Value(t.Value(i, string(ch)))
			}
		}
		rows[i] = r
	}
	return b.shape(rows)
}

// series returns the channels distinguishing series within the layer.
func (b *Built) series() []spec.Channel {
	var out []spec.Channel
	for _, ch := range []spec.Channel{spec.ChannelColor, spec.ChannelGroup} {
		if b.selects(ch) {
			out = append(out, ch)
		}
	}
	return out
}

func (b *Built) orderBy(chans ...spec.Channel) []Order {
	orders := make([]Order, 0, len(chans))
	for _, ch := range chans {
		res := b.Resolved[ch]
		orders = append(orders, func(x, y Row) int { return res.Compare(x[ch], y[ch]) })
	}
	return orders
}

func (b *Built) shape(rows []Row) []Row {
	series := b.series()
	if b.Stacked != "" {
		if b.Layer.Mark == spec.MarkArea {
			for _, ch := range series {
				rows = CompleteCross(rows, ch, b.Stacked, b.Resolved[b.Stacked].Default())
			}
		}
		rows = Stack(rows, b.Stacked, b.orderBy(series...))
	}

	switch b.Layer.Mark {
	case spec.MarkLine, spec.MarkArea:
		along := spec.ChannelX
		if b.Stacked == spec.ChannelX {
			along = spec.ChannelY
		}
		if b.selects(along) {
			orders := b.orderBy(append(slices.Clone(series), along)...)
			slices.SortStableFunc(rows, func(x, y Row) int {
				for _, o := range orders {
					if c := o(x, y); c != 0 {
						return c
					}
				}
				return 0
			})
		}
	}
	return rows
}
