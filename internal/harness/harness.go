package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/crossplot/internal/chart"
	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/selection"
	"github.com/roach88/crossplot/internal/spec"
)

// FixedTime timestamps every scenario snapshot.
var FixedTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// StepTimeout bounds how long a single step may take to settle.
var StepTimeout = 30 * time.Second

// Harness runs one scenario against a fresh in-memory database.
type Harness struct {
	scenario *Scenario
	host     *chart.Host
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory DuckDB database. Charts are
// mounted in order, then steps are applied one at a time, each waiting
// until every query it started has settled. Assertions run against the
// final host.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return run(ctx, scenario, func(h *Harness) error {
		if err := h.mount(ctx); err != nil {
			return err
		}
		for i, st := range scenario.Steps {
			if err := h.apply(ctx, st); err != nil {
				return fmt.Errorf("steps[%d] %s: %w", i, st.Action, err)
			}
		}
		return nil
	})
}

// Replay runs a scenario's setup, restores st in place of its charts and
// steps, and evaluates its assertions.
func Replay(ctx context.Context, scenario *Scenario, st chart.AppState) (*Result, error) {
	return run(ctx, scenario, func(h *Harness) error {
		if err := h.do(ctx, func() error { return h.host.Restore(st) }); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		return nil
	})
}

func run(ctx context.Context, scenario *Scenario, drive func(*Harness) error) (*Result, error) {
	db, err := conn.OpenDuckDB("")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	for i, stmt := range scenario.Setup {
		if err := db.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	host := chart.NewHost(db, scenario.Table, chart.WithNow(func() time.Time { return FixedTime }))
	defer host.Close()

	h := &Harness{scenario: scenario, host: host}
	if err := drive(h); err != nil {
		return nil, err
	}

	result := NewResult()
	var assertErrs []string
	if err := h.do(ctx, func() error {
		assertErrs = EvaluateAssertions(host, scenario.Assertions)
		snap, err := takeSnapshot(scenario.Name, host)
		if err != nil {
			return err
		}
		result.Snapshot = snap
		st, err := host.Snapshot()
		if err != nil {
			return err
		}
		result.State = st
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to capture result: %w", err)
	}
	for _, msg := range assertErrs {
		result.AddError(msg)
	}

	slog.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"errors", len(result.Errors))
	return result, nil
}

// do runs fn on the host loop and waits for the host to settle.
func (h *Harness) do(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, StepTimeout)
	defer cancel()

	var fnErr error
	if err := h.host.Do(ctx, func() { fnErr = fn() }); err != nil {
		return err
	}
	return fnErr
}

func (h *Harness) mount(ctx context.Context) error {
	for i, def := range h.scenario.Charts {
		s, err := h.scenario.chartSpec(def.Spec, def.File)
		if err != nil {
			return fmt.Errorf("charts[%d]: %w", i, err)
		}
		id := def.ID
		if err := h.do(ctx, func() error {
			return h.host.NewChart(chart.WithChartID(id)).SetSpec(s)
		}); err != nil {
			return fmt.Errorf("charts[%d]: %w", i, err)
		}
		slog.Debug("chart mounted", "chart", id)
	}
	return nil
}

func (h *Harness) apply(ctx context.Context, st Step) error {
	// Spec documents are read before entering the loop.
	var (
		next  spec.ChartSpec
		patch []byte
		mode  = spec.ModeMerge
		err   error
	)
	switch st.Action {
	case StepSetSpec:
		if next, err = h.scenario.chartSpec(st.Spec, st.File); err != nil {
			return err
		}
	case StepUpdateSpec:
		if patch, err = h.scenario.specJSON(st.Spec, st.File); err != nil {
			return err
		}
		if st.Mode != "" {
			if mode, err = spec.ParseMode(st.Mode); err != nil {
				return err
			}
		}
	}

	return h.do(ctx, func() error {
		if st.Action == StepReset {
			h.host.Filter().Reset()
			return nil
		}
		c, ok := h.host.Chart(st.Chart)
		if !ok {
			return fmt.Errorf("chart %q is not mounted", st.Chart)
		}
		switch st.Action {
		case StepSelect:
			c.Select(st.Selection, st.Value, st.Additive)
		case StepBrush:
			c.Brush(st.Selection, brushRanges(st))
		case StepClear:
			c.ClearSelection(st.Selection)
		case StepDestroy:
			c.Destroy()
		case StepSetSpec:
			return c.SetSpec(next)
		case StepUpdateSpec:
			return c.UpdateSpec(patch, mode)
		default:
			return fmt.Errorf("unknown action %q", st.Action)
		}
		return nil
	})
}

func brushRanges(st Step) map[spec.Channel]selection.Range {
	ranges := make(map[spec.Channel]selection.Range)
	if len(st.X) == 2 {
		ranges[spec.ChannelX] = selection.Range{st.X[0], st.X[1]}
	}
	if len(st.Y) == 2 {
		ranges[spec.ChannelY] = selection.Range{st.Y[0], st.Y[1]}
	}
	return ranges
}

// takeSnapshot summarizes the host. Charts are ordered by id.
func takeSnapshot(name string, host *chart.Host) (Snapshot, error) {
	pred, err := host.Predicate()
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Scenario:  name,
		Predicate: pred,
		Clauses:   len(host.Filter().Clauses()),
		Charts:    []ChartSnapshot{},
	}

	charts := host.Charts()
	sort.Slice(charts, func(i, j int) bool { return charts[i].ID() < charts[j].ID() })
	for _, c := range charts {
		cs := ChartSnapshot{ID: c.ID(), Layers: []LayerSnapshot{}}
		for _, lo := range c.Outputs().Get().Layers {
			cs.Layers = append(cs.Layers, LayerSnapshot{
				Index: lo.Index,
				Mark:  string(lo.Mark),
				Rows:  len(lo.Rows),
				Error: lo.Error,
			})
		}
		if st := c.State(); len(st) > 0 {
			cs.State = st
		}
		snap.Charts = append(snap.Charts, cs)
	}
	return snap, nil
}
