package chart

import (
	"slices"

	"github.com/roach88/crossplot/internal/layer"
	"github.com/roach88/crossplot/internal/scale"
	"github.com/roach88/crossplot/internal/spec"
)

// Outputs is everything a renderer needs to draw a chart.
type Outputs struct {
	Title  string                        `json:"title,omitempty"`
	Scale  map[spec.Channel]scale.Config `json:"scale"`
	Axis   map[spec.Channel]AxisOutput   `json:"axis"`
	Layers []LayerOutput                 `json:"layers"`
}

// AxisOutput describes the x or y axis.
type AxisOutput struct {
	Title  string `json:"title,omitempty"`
	Ticks  []any  `json:"ticks"`
	Hidden bool   `json:"hidden,omitempty"`
}

// LayerOutput is one layer's render data. Layers are ordered by ZIndex,
// then by position in the layer list. Pending is set until the layer's first
// result arrives.
type LayerOutput struct {
	Index   int            `json:"index"`
	Mark    spec.Mark      `json:"mark"`
	Style   map[string]any `json:"style,omitempty"`
	ZIndex  int            `json:"zIndex,omitempty"`
	Rows    []layer.Row    `json:"rows"`
	Pending bool           `json:"pending,omitempty"`
	Err     error          `json:"-"`
	Error   string         `json:"error,omitempty"`
}

// Ready reports whether every layer has data or an error.
func (o Outputs) Ready() bool {
	for _, l := range o.Layers {
		if l.Pending {
			return false
		}
	}
	return true
}

// publish recomputes and sets outputs in one step; subscribers never see a
// partially updated set.
func (c *Chart) publish() {
	c.outputs.Set(c.computeOutputs())
}

func (c *Chart) computeOutputs() Outputs {
	out := Outputs{
		Title: c.spec.Title,
		Scale: make(map[spec.Channel]scale.Config),
		Axis:  make(map[spec.Channel]AxisOutput),
	}

	hints := make(map[spec.Channel]scale.Hint)
	values := make(map[spec.Channel][]any)
	titles := make(map[spec.Channel]string)
	for _, lc := range c.layers {
		lo := LayerOutput{
			Index:   lc.index,
			Mark:    lc.layer.Mark,
			Style:   lc.layer.Style,
			ZIndex:  lc.layer.ZIndex,
			Rows:    lc.rows,
			Pending: !lc.ready,
			Err:     lc.err,
		}
		if lc.err != nil {
			lo.Error = lc.err.Error()
		}
		out.Layers = append(out.Layers, lo)

		b := lc.built
		if b == nil {
			continue
		}
		for axis, h := range b.Hints {
			hints[axis] = hints[axis].Merge(h)
		}
		for _, ch := range b.Channels {
			axis := ch.Axis()
			if _, ok := titles[axis]; !ok && b.Resolved[ch].Title != "" {
				titles[axis] = b.Resolved[ch].Title
			}
			for _, row := range lc.rows {
				values[axis] = append(values[axis], row[ch])
			}
		}
	}
	slices.SortStableFunc(out.Layers, func(a, b LayerOutput) int {
		if a.ZIndex != b.ZIndex {
			return a.ZIndex - b.ZIndex
		}
		return a.Index - b.Index
	})

	for _, ch := range spec.Channels {
		if ch.Axis() != ch {
			continue
		}
		if hints[ch].IsZero() && len(values[ch]) == 0 {
			continue
		}
		out.Scale[ch] = scale.Infer(ch, c.spec.Scale[ch], hints[ch], values[ch])
	}

	for _, ch := range []spec.Channel{spec.ChannelX, spec.ChannelY} {
		cfg, ok := out.Scale[ch]
		if !ok {
			continue
		}
		as := c.spec.Axis[ch]
		title := as.Title
		if title == "" {
			title = titles[ch]
		}
		out.Axis[ch] = AxisOutput{
			Title:  title,
			Ticks:  scale.Bind(cfg, 0, 1).Ticks(as.TickCount),
			Hidden: as.Hidden,
		}
	}
	return out
}
