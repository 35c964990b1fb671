package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/crossplot/internal/chart"
	"github.com/roach88/crossplot/internal/spec"
)

// createTestStore opens a fresh store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	return createTestStoreAt(t, filepath.Join(t.TempDir(), "state.db"))
}

func createTestStoreAt(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func histogramSpec() spec.ChartSpec {
	return spec.ChartSpec{
		Title: "Delay",
		Layers: []spec.Layer{{
			Mark: spec.MarkBar,
			Encoding: map[spec.Channel]spec.Encoding{
				spec.ChannelX: spec.BinnedOf("delay", 10),
				spec.ChannelY: spec.AggregateOf(spec.AggCount, ""),
			},
		}},
		Selections: map[string]spec.SelectionSpec{
			"brush": {Type: spec.SelectionInterval, Encoding: spec.SelectEncodingX},
		},
	}
}

func carrierSpec() spec.ChartSpec {
	on := true
	return spec.ChartSpec{
		Layers: []spec.Layer{{
			Mark:   spec.MarkBar,
			Filter: &on,
			Encoding: map[spec.Channel]spec.Encoding{
				spec.ChannelX: spec.FieldOf("carrier"),
				spec.ChannelY: spec.AggregateOf(spec.AggCount, ""),
			},
		}},
		Selections: map[string]spec.SelectionSpec{
			"pick": {Type: spec.SelectionPoint},
		},
	}
}

// createTestState returns a two-chart state with a brush on chart "a".
func createTestState() chart.AppState {
	return chart.AppState{
		Version:   chart.StateVersion,
		Timestamp: testTime,
		Charts: map[string]spec.ChartSpec{
			"a": histogramSpec(),
			"b": carrierSpec(),
		},
		ChartStates: map[string]map[string]any{
			"a": {"brush": map[string]any{"x": []any{0.0, 10.0}}},
			"b": {},
		},
		Layout:    map[string]any{"columns": 2.0},
		Predicate: `"delay" BETWEEN 0 AND 10`,
	}
}
