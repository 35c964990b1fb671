package chart

import (
	"log/slog"
	"maps"
	"sort"

	"github.com/roach88/crossplot/internal/binning"
	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/encoding"
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/selection"
	"github.com/roach88/crossplot/internal/spec"
)

// SelectionOutput describes one named selection of a chart. Predicate
// derives the clause predicate for a selection state, or nil for an empty
// state.
type SelectionOutput struct {
	Name      string                            `json:"name"`
	Type      string                            `json:"type"`
	Encoding  string                            `json:"encoding"`
	Predicate func(state any) queryir.Predicate `json:"-"`
}

// slot is the cross-filter source of one (chart, selection) pair. Its
// identity keys the chart's single clause for that selection.
type slot struct {
	chart *Chart
	name  string
}

// Reset nulls the selection's local state; the clause is re-derived on
// the next task.
func (s *slot) Reset() {
	c := s.chart
	if c.destroyed {
		return
	}
	delete(c.state, s.name)
	c.host.sched.Post(func() {
		if c.destroyed {
			return
		}
		c.syncSelection(s.name)
		c.states.Set(c.State())
	})
}

func (c *Chart) slot(name string) *slot {
	s, ok := c.slots[name]
	if !ok {
		s = &slot{chart: c, name: name}
		c.slots[name] = s
	}
	return s
}

func (c *Chart) selectionNames() []string {
	names := make([]string, 0, len(c.spec.Selections))
	for name := range c.spec.Selections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Chart) selectionOutputs() []SelectionOutput {
	var out []SelectionOutput
	for _, name := range c.selectionNames() {
		sel := c.spec.Selections[name]
		enc := sel.Encoding
		if enc == "" {
			enc = defaultEncoding(sel.Type)
		}
		out = append(out, SelectionOutput{
			Name:     name,
			Type:     sel.Type,
			Encoding: enc,
			Predicate: func(state any) queryir.Predicate {
				p, _ := c.derive(name, state)
				return p
			},
		})
	}
	return out
}

func defaultEncoding(typ string) string {
	if typ == spec.SelectionInterval {
		return spec.SelectEncodingXY
	}
	return spec.SelectEncodingX
}

// Select applies a click on value v to a point selection. An additive
// click toggles v within the current values.
func (c *Chart) Select(name string, v any, additive bool) {
	if !c.hasSelection(name, spec.SelectionPoint) {
		return
	}
	values := selection.Toggle(asList(c.state[name]), v, additive)
	if len(values) == 0 {
		c.setState(name, nil)
		return
	}
	c.setState(name, values)
}

// Brush sets the extent of an interval selection. Axes missing from ranges
// are unconstrained; an empty ranges map clears the selection.
func (c *Chart) Brush(name string, ranges map[spec.Channel]selection.Range) {
	if !c.hasSelection(name, spec.SelectionInterval) {
		return
	}
	if len(ranges) == 0 {
		c.setState(name, nil)
		return
	}
	st := make(map[string]any, len(ranges))
	for ch, r := range ranges {
		r = r.Normalized()
		st[string(ch)] = []any{r[0], r[1]}
	}
	c.setState(name, st)
}

// ClearSelection empties a selection.
func (c *Chart) ClearSelection(name string) {
	if _, ok := c.spec.Selections[name]; ok {
		c.setState(name, nil)
	}
}

// Activate signals that an interaction on name is starting, so the filter
// can prepare for its clause.
func (c *Chart) Activate(name string) {
	if _, ok := c.spec.Selections[name]; !ok || c.destroyed {
		return
	}
	p, v := c.derive(name, c.state[name])
	c.host.filter.Activate(selection.Clause{
		Source:    c.slot(name),
		Clients:   c.clientIDs(),
		Predicate: p,
		Value:     v,
	})
}

// UpdateState applies an interaction state update: a merge patch by
// default, or the full state with ModeReplace.
func (c *Chart) UpdateState(update map[string]any, mode spec.Mode) {
	if c.destroyed {
		return
	}
	c.state = spec.ApplyState(c.state, update, mode)
	if c.state == nil {
		c.state = make(map[string]any)
	}
	for name := range c.state {
		if _, ok := c.spec.Selections[name]; !ok {
			slog.Warn("dropping state for unknown selection", "chart", c.id, "selection", name)
			delete(c.state, name)
		}
	}
	c.syncSelections()
	c.states.Set(c.State())
}

func (c *Chart) hasSelection(name, typ string) bool {
	if c.destroyed {
		return false
	}
	sel, ok := c.spec.Selections[name]
	if !ok || sel.Type != typ {
		slog.Warn("no such selection", "chart", c.id, "selection", name, "type", typ)
		return false
	}
	return true
}

func (c *Chart) setState(name string, v any) {
	if v == nil {
		delete(c.state, name)
	} else {
		c.state[name] = v
	}
	c.syncSelection(name)
	c.states.Set(c.State())
}

func (c *Chart) syncSelections() {
	for _, name := range c.selectionNames() {
		c.syncSelection(name)
	}
}

// syncSelection writes the clause for name, or clears it when the state
// derives no predicate.
func (c *Chart) syncSelection(name string) {
	p, v := c.derive(name, c.state[name])
	if p == nil {
		c.clearClause(name)
		return
	}
	c.host.filter.Update(selection.Clause{
		Source:    c.slot(name),
		Clients:   c.clientIDs(),
		Predicate: p,
		Value:     v,
	})
}

func (c *Chart) clearClause(name string) {
	c.host.filter.Update(selection.Clause{Source: c.slot(name)})
}

// derive maps a selection state to its predicate and clause value. It
// returns nil when the state is empty or the selection's layer is not
// built.
func (c *Chart) derive(name string, state any) (queryir.Predicate, any) {
	sel, ok := c.spec.Selections[name]
	if !ok || state == nil {
		return nil, nil
	}
	b := c.builtLayer(sel.Layer)
	if b == nil {
		return nil, nil
	}
	enc := sel.Encoding
	if enc == "" {
		enc = defaultEncoding(sel.Type)
	}

	switch sel.Type {
	case spec.SelectionPoint:
		ch := spec.ChannelX
		if enc == spec.SelectEncodingY {
			ch = spec.ChannelY
		}
		r, ok := b.Resolved[ch]
		if !ok {
			return nil, nil
		}
		values := pointValues(r, asList(state))
		p := selection.PointPredicate(r, values)
		if p == nil {
			return nil, nil
		}
		return p, values

	case spec.SelectionInterval:
		ranges := asRanges(state)
		fields := make(map[spec.Channel]string)
		for _, ch := range []spec.Channel{spec.ChannelX, spec.ChannelY} {
			if enc != spec.SelectEncodingXY && enc != string(ch) {
				delete(ranges, ch)
				continue
			}
			if r, ok := b.Resolved[ch]; ok && !r.Aggregate {
				fields[ch] = r.Field
			}
		}
		p := selection.IntervalPredicate(fields, ranges)
		if p == nil {
			return nil, nil
		}
		return p, state
	}
	slog.Warn("unknown selection type", "chart", c.id, "selection", name, "type", sel.Type)
	return nil, nil
}

func asList(v any) []any {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		return val
	}
	return []any{v}
}

// pointValues restores bin intervals decoded from JSON state as [lo, hi]
// arrays.
func pointValues(r *encoding.Resolved, values []any) []any {
	if r.Binning == nil || r.Binning.Quantitative == nil {
		return values
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
		pair, ok := v.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		lo, ok1 := conn.ToFloat(pair[0])
		hi, ok2 := conn.ToFloat(pair[1])
		if ok1 && ok2 {
			out[i] = binning.Interval{Lo: lo, Hi: hi}
		}
	}
	return out
}

func asRanges(v any) map[spec.Channel]selection.Range {
	out := make(map[spec.Channel]selection.Range)
	var m map[string]any
	switch val := v.(type) {
	case map[string]any:
		m = val
	case map[spec.Channel]selection.Range:
		return maps.Clone(val)
	default:
		return out
	}
	for k, raw := range m {
		pair := asList(raw)
		if len(pair) != 2 {
			continue
		}
		lo, ok1 := conn.ToFloat(pair[0])
		hi, ok2 := conn.ToFloat(pair[1])
		if ok1 && ok2 {
			out[spec.Channel(k)] = selection.Range{lo, hi}
		}
	}
	return out
}
