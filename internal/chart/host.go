package chart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/engine"
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/querysql"
	"github.com/roach88/crossplot/internal/selection"
	"github.com/roach88/crossplot/internal/spec"
	"github.com/roach88/crossplot/internal/stats"
)

// FilterName is the name of the host's cross-filter selection.
const FilterName = "crossfilter"

// Host owns the resources shared by a set of charts.
type Host struct {
	sched  *engine.Scheduler
	coord  *engine.Coordinator
	stats  *stats.Cache
	filter *selection.Selection
	source queryir.Source
	ids    engine.IDGenerator
	now    func() time.Time

	coordOpts []engine.CoordinatorOption
	charts    []*Chart

	layout       any
	layoutStates any
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithIDGenerator sets the chart id generator. Default: UUIDv7.
func WithIDGenerator(g engine.IDGenerator) HostOption {
	return func(h *Host) {
		h.ids = g
	}
}

// WithNow sets the clock used to timestamp snapshots.
func WithNow(now func() time.Time) HostOption {
	return func(h *Host) {
		h.now = now
	}
}

// WithCoordinatorOptions passes options to the query coordinator.
func WithCoordinatorOptions(opts ...engine.CoordinatorOption) HostOption {
	return func(h *Host) {
		h.coordOpts = append(h.coordOpts, opts...)
	}
}

// WithScheduler runs the host on an existing scheduler.
func WithScheduler(s *engine.Scheduler) HostOption {
	return func(h *Host) {
		h.sched = s
	}
}

// NewHost creates a host whose charts read table from backend.
func NewHost(backend conn.Connector, table string, opts ...HostOption) *Host {
	h := &Host{
		stats:  stats.NewCache(backend),
		filter: selection.New(FilterName),
		source: queryir.Table{Name: table},
		ids:    engine.UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.sched == nil {
		h.sched = engine.NewScheduler()
	}
	h.coord = engine.NewCoordinator(h.sched, backend, h.coordOpts...)
	return h
}

// Scheduler returns the loop every chart runs on.
func (h *Host) Scheduler() *engine.Scheduler { return h.sched }

// Filter returns the shared cross-filter.
func (h *Host) Filter() *selection.Selection { return h.filter }

// Stats returns the shared statistics cache.
func (h *Host) Stats() *stats.Cache { return h.stats }

// Coordinator returns the live query coordinator.
func (h *Host) Coordinator() *engine.Coordinator { return h.coord }

// Charts returns the live charts in creation order.
func (h *Host) Charts() []*Chart {
	return slices.Clone(h.charts)
}

// Chart returns the chart with id.
func (h *Host) Chart(id string) (*Chart, bool) {
	for _, c := range h.charts {
		if c.id == id {
			return c, true
		}
	}
	return nil, false
}

// Do runs fn on the loop and waits until every task and query it started
// has finished. It is for callers that do not run the loop themselves.
func (h *Host) Do(ctx context.Context, fn func()) error {
	if !h.sched.Post(fn) {
		return errors.New("host is closed")
	}
	return h.sched.Drain(ctx)
}

// Drain runs pending tasks until the host is idle.
func (h *Host) Drain(ctx context.Context) error {
	return h.sched.Drain(ctx)
}

// Close destroys every chart and stops the loop.
func (h *Host) Close() {
	h.sched.Post(func() {
		for _, c := range h.Charts() {
			c.Destroy()
		}
	})
	if err := h.sched.Drain(context.Background()); err != nil {
		slog.Warn("draining host on close", "error", err)
	}
	h.sched.Stop()
	h.sched.Wait()
}

// SetLayout records the opaque dashboard layout carried in snapshots.
func (h *Host) SetLayout(layout, layoutStates any) {
	h.layout = layout
	h.layoutStates = layoutStates
}

func (h *Host) remove(c *Chart) {
	h.charts = slices.DeleteFunc(h.charts, func(x *Chart) bool { return x == c })
}

// Predicate renders the current cross-filter as inline SQL, or "" when
// nothing is selected.
func (h *Host) Predicate() (string, error) {
	sql, _, err := querysql.NewInlineCompiler().CompilePredicate(h.filter.Predicate(""))
	if err != nil {
		return "", fmt.Errorf("render filter: %w", err)
	}
	return sql, nil
}

// StateVersion is the version written to snapshots.
const StateVersion = 1

// AppState is the persisted state of a host. Predicate is derived from the
// cross-filter for display; Restore ignores it.
type AppState struct {
	Version      int                       `json:"version"`
	Timestamp    time.Time                 `json:"timestamp"`
	Charts       map[string]spec.ChartSpec `json:"charts"`
	ChartStates  map[string]map[string]any `json:"chartStates"`
	Layout       any                       `json:"layout,omitempty"`
	LayoutStates any                       `json:"layoutStates,omitempty"`
	Predicate    string                    `json:"predicate"`
}

// Snapshot captures every chart's spec and interaction state.
func (h *Host) Snapshot() (AppState, error) {
	st := AppState{
		Version:      StateVersion,
		Timestamp:    h.now().UTC(),
		Charts:       make(map[string]spec.ChartSpec, len(h.charts)),
		ChartStates:  make(map[string]map[string]any, len(h.charts)),
		Layout:       h.layout,
		LayoutStates: h.layoutStates,
	}
	for _, c := range h.charts {
		st.Charts[c.id] = c.spec
		st.ChartStates[c.id] = c.State()
	}
	pred, err := h.Predicate()
	if err != nil {
		return AppState{}, err
	}
	st.Predicate = pred
	return st, nil
}

// Restore replaces every chart with those recorded in st.
func (h *Host) Restore(st AppState) error {
	if st.Version != StateVersion {
		return fmt.Errorf("unsupported state version %d", st.Version)
	}
	for _, c := range h.Charts() {
		c.Destroy()
	}
	ids := make([]string, 0, len(st.Charts))
	for id := range st.Charts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c := h.NewChart(WithChartID(id))
		if err := c.SetSpec(st.Charts[id]); err != nil {
			return fmt.Errorf("restore chart %s: %w", id, err)
		}
		if s := st.ChartStates[id]; len(s) > 0 {
			c.UpdateState(s, spec.ModeReplace)
		}
	}
	h.SetLayout(st.Layout, st.LayoutStates)
	slog.Info("restored state", "charts", len(ids))
	return nil
}
