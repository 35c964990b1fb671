package chart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"

	"github.com/roach88/crossplot/internal/encoding"
	"github.com/roach88/crossplot/internal/engine"
	"github.com/roach88/crossplot/internal/layer"
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/spec"
)

// ErrDestroyed is returned by operations on a destroyed chart.
var ErrDestroyed = errors.New("chart destroyed")

// Chart owns one chart specification and its live layers.
type Chart struct {
	host *Host
	id   string

	spec spec.ChartSpec
	hash string
	// gen tags spec applications; a build whose tag is no longer current
	// is discarded.
	gen *engine.Generation

	layers []*layerClient
	state  map[string]any
	slots  map[string]*slot

	outputs    *engine.Cell[Outputs]
	selections *engine.Cell[[]SelectionOutput]
	specs      *engine.Cell[spec.ChartSpec]
	states     *engine.Cell[map[string]any]

	destroyed bool
}

// ChartOption configures a Chart.
type ChartOption func(*Chart)

// WithChartID sets the chart id instead of generating one.
func WithChartID(id string) ChartOption {
	return func(c *Chart) {
		c.id = id
	}
}

// NewChart creates an empty chart on h.
func (h *Host) NewChart(opts ...ChartOption) *Chart {
	c := &Chart{
		host:       h,
		gen:        engine.NewGeneration(),
		state:      make(map[string]any),
		slots:      make(map[string]*slot),
		outputs:    engine.NewCell(Outputs{}),
		selections: engine.NewCell[[]SelectionOutput](nil),
		specs:      engine.NewCell(spec.ChartSpec{}),
		states:     engine.NewCell(map[string]any{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = h.ids.Generate()
	}
	h.charts = append(h.charts, c)
	slog.Debug("chart created", "chart", c.id)
	return c
}

// ID returns the chart id.
func (c *Chart) ID() string { return c.id }

// Spec returns the active spec.
func (c *Chart) Spec() spec.ChartSpec { return c.spec }

// Outputs returns the cell publishing render outputs.
func (c *Chart) Outputs() *engine.Cell[Outputs] { return c.outputs }

// Selections returns the cell publishing selection outputs.
func (c *Chart) Selections() *engine.Cell[[]SelectionOutput] { return c.selections }

// OnSpecChange registers fn for every applied spec.
func (c *Chart) OnSpecChange(fn func(spec.ChartSpec)) (unsubscribe func()) {
	return c.specs.Subscribe(fn)
}

// OnStateChange registers fn for every interaction state change.
func (c *Chart) OnStateChange(fn func(map[string]any)) (unsubscribe func()) {
	return c.states.Subscribe(fn)
}

// Destroyed reports whether Destroy was called.
func (c *Chart) Destroyed() bool { return c.destroyed }

// SetSpec replaces the active spec. A spec deep-equal to the active one is
// a no-op. Layers are built asynchronously; Outputs publishes them when
// they are installed.
func (c *Chart) SetSpec(s spec.ChartSpec) error {
	if c.destroyed {
		return ErrDestroyed
	}
	hash, err := spec.Hash(s)
	if err != nil {
		return fmt.Errorf("set spec: %w", err)
	}
	if hash == c.hash {
		slog.Debug("spec unchanged", "chart", c.id)
		return nil
	}

	c.release()
	c.spec = s
	c.hash = hash
	for name := range c.state {
		if _, ok := s.Selections[name]; !ok {
			delete(c.state, name)
		}
	}
	gen := c.gen.Next()
	slog.Info("applying spec", "chart", c.id, "generation", gen, "layers", len(s.Layers))

	c.publish()
	c.selections.Set(c.selectionOutputs())
	c.specs.Set(s)

	env := encoding.Env{Stats: c.host.stats, Scales: s.Scale}
	src := c.host.source
	c.host.sched.Go(func(ctx context.Context) engine.Task {
		built := buildLayers(ctx, env, src, s)
		return func() { c.install(gen, built) }
	})
	return nil
}

// UpdateSpec applies a JSON update to the active spec: a merge patch by
// default, or a full document with ModeReplace.
func (c *Chart) UpdateSpec(update []byte, mode spec.Mode) error {
	if c.destroyed {
		return ErrDestroyed
	}
	next, err := c.spec.Apply(update, mode)
	if err != nil {
		return fmt.Errorf("update spec: %w", err)
	}
	return c.SetSpec(next)
}

// Destroy clears the chart's clauses from the cross-filter, drops every
// subscription, then disconnects its query clients. Results that arrive
// afterwards are discarded.
func (c *Chart) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.gen.Next()
	c.clearClauses()
	c.outputs.UnsubscribeAll()
	c.selections.UnsubscribeAll()
	c.specs.UnsubscribeAll()
	c.states.UnsubscribeAll()
	c.disconnect()
	c.host.remove(c)
	slog.Info("chart destroyed", "chart", c.id)
}

// release clears clauses before disconnecting the clients they list.
func (c *Chart) release() {
	c.clearClauses()
	c.disconnect()
}

func (c *Chart) clearClauses() {
	names := make([]string, 0, len(c.slots))
	for name := range c.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.clearClause(name)
	}
}

func (c *Chart) disconnect() {
	for _, lc := range c.layers {
		if lc.connected {
			c.host.coord.Disconnect(lc)
			lc.connected = false
		}
	}
	c.layers = nil
}

type buildResult struct {
	index int
	built *layer.Built
	err   error
}

// buildLayers runs off the loop. Layers with specification errors are
// omitted; other failures are kept so the layer reports them.
func buildLayers(ctx context.Context, env encoding.Env, src queryir.Source, s spec.ChartSpec) []buildResult {
	var out []buildResult
	for i, l := range s.Layers {
		b, err := layer.Build(ctx, env, src, l, i)
		if err != nil {
			var se *encoding.SpecError
			if errors.As(err, &se) {
				slog.Warn("omitting layer", "layer", i, "code", se.Code, "error", se.Message)
				continue
			}
			slog.Error("building layer", "layer", i, "error", err)
		}
		out = append(out, buildResult{index: i, built: b, err: err})
	}
	return out
}

func (c *Chart) install(gen int64, results []buildResult) {
	if c.destroyed || !c.gen.IsCurrent(gen) {
		slog.Debug("discarding stale layers", "chart", c.id, "generation", gen)
		return
	}
	for _, r := range results {
		lc := &layerClient{
			chart: c,
			id:    fmt.Sprintf("%s:%d:%d", c.id, gen, r.index),
			index: r.index,
			layer: c.spec.Layers[r.index],
			built: r.built,
			err:   r.err,
		}
		if r.err != nil {
			lc.ready = true
		}
		c.layers = append(c.layers, lc)
	}

	// Clauses list the new clients before those clients issue queries.
	c.syncSelections()

	for _, lc := range c.layers {
		switch {
		case lc.built == nil:
		case lc.built.IsStatic():
			lc.rows = lc.built.StaticRows()
			lc.ready = true
		default:
			filter := c.host.filter
			if !lc.built.Filtered {
				filter = nil
			}
			lc.connected = true
			c.host.coord.Connect(lc, filter)
		}
	}
	slog.Debug("layers installed", "chart", c.id, "generation", gen, "layers", len(c.layers))
	c.publish()
	c.selections.Set(c.selectionOutputs())
}

func (c *Chart) clientIDs() []string {
	ids := make([]string, 0, len(c.layers))
	for _, lc := range c.layers {
		ids = append(ids, lc.id)
	}
	return ids
}

func (c *Chart) builtLayer(index int) *layer.Built {
	for _, lc := range c.layers {
		if lc.index == index {
			return lc.built
		}
	}
	return nil
}

// State returns a copy of the interaction state keyed by selection name.
func (c *Chart) State() map[string]any {
	return maps.Clone(c.state)
}
