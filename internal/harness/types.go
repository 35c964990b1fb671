package harness

import "github.com/roach88/crossplot/internal/chart"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the golden-comparable summary of the final host.
	Snapshot Snapshot `json:"snapshot"`

	// State is the host's persisted state after the last step.
	State chart.AppState `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Snapshot summarizes the final filter and outputs. Rows are counted, not
// listed, so golden files stay stable across float formatting.
type Snapshot struct {
	Scenario  string          `json:"scenario"`
	Predicate string          `json:"predicate"`
	Clauses   int             `json:"clauses"`
	Charts    []ChartSnapshot `json:"charts"`
}

// ChartSnapshot is one chart's entry in a Snapshot.
type ChartSnapshot struct {
	ID     string          `json:"id"`
	Layers []LayerSnapshot `json:"layers"`
	State  map[string]any  `json:"state,omitempty"`
}

// LayerSnapshot is one layer's entry in a ChartSnapshot.
type LayerSnapshot struct {
	Index int    `json:"index"`
	Mark  string `json:"mark"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}
