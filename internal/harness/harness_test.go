package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crossplot/internal/chart"
)

const flightsSetup = `
table: flights
setup:
  - CREATE TABLE flights (carrier VARCHAR, delay DOUBLE)
  - INSERT INTO flights VALUES ('AA', 5), ('AA', 15), ('UA', 35), ('DL', 8)
`

const barsChart = `
  - id: bars
    spec:
      layers:
        - mark: bar
          filter: true
          encoding:
            x: { field: carrier }
            y: { aggregate: count }
      selections:
        pick: { type: point, encoding: x }
`

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return s
}

func runScenario(t *testing.T, doc string) *Result {
	t.Helper()
	result, err := Run(context.Background(), mustParse(t, doc))
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestRun_MountsCharts(t *testing.T) {
	result := runScenario(t, "name: mount\n"+flightsSetup+"charts:"+barsChart+`
assertions:
  - type: chart_count
    count: 1
  - type: layer_rows
    chart: bars
    count: 3
  - type: predicate
    equals: ""
`)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	assert.Equal(t, "mount", result.Snapshot.Scenario)
	require.Len(t, result.Snapshot.Charts, 1)
	assert.Equal(t, []LayerSnapshot{{Index: 0, Mark: "bar", Rows: 3}}, result.Snapshot.Charts[0].Layers)

	assert.Equal(t, chart.StateVersion, result.State.Version)
	assert.True(t, result.State.Timestamp.Equal(FixedTime))
	assert.Contains(t, result.State.Charts, "bars")
}

func TestRun_FailedAssertionsReported(t *testing.T) {
	result := runScenario(t, "name: failing\n"+flightsSetup+"charts:"+barsChart+`
assertions:
  - type: clause_count
    count: 2
  - type: layer_rows
    chart: bars
    count: 10
  - type: layer_rows
    chart: missing
    count: 1
  - type: domain_contains
    chart: bars
    channel: x
    values: [ZZ]
  - type: layer_error
    chart: bars
    contains: QUERY_EXEC
`)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "Expected: 2 clauses")
	assert.Contains(t, result.Errors[0], "Actual: 0 clauses")
	assert.Contains(t, result.Errors[1], "Actual: 3 rows")
	assert.Contains(t, result.Errors[2], "chart not mounted")
	assert.Contains(t, result.Errors[3], `category "ZZ"`)
	assert.Contains(t, result.Errors[4], "no error")
}

func TestRun_LayerError(t *testing.T) {
	result := runScenario(t, "name: broken_source\n"+flightsSetup+`
charts:
  - id: broken
    spec:
      layers:
        - mark: point
          source: missing
          encoding:
            x: { field: a }
            y: { field: b }
assertions:
  - type: layer_error
    chart: broken
    contains: QUERY_EXEC
  - type: layer_rows
    chart: broken
    count: 0
`)

	require.Len(t, result.Errors, 1, "layer_rows fails on an errored layer")
	assert.Contains(t, result.Errors[0], "layer error")
	assert.Contains(t, result.Snapshot.Charts[0].Layers[0].Error, "QUERY_EXEC")
}

func TestRun_StepsDriveFilter(t *testing.T) {
	result := runScenario(t, "name: steps\n"+flightsSetup+"charts:"+barsChart+`
  - id: points
    spec:
      layers:
        - mark: point
          filter: true
          encoding:
            x: { field: delay }
            y: { field: delay }
      selections:
        brush: { type: interval, encoding: x }
steps:
  - action: select
    chart: bars
    selection: pick
    value: AA
  - action: brush
    chart: points
    selection: brush
    x: [0, 10]
assertions:
  - type: clause_count
    count: 2
  - type: layer_rows
    chart: points
    count: 2
  - type: layer_rows
    chart: bars
    count: 2
`)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Snapshot.Clauses)
	assert.Equal(t, map[string]any{"pick": []any{"AA"}}, result.State.ChartStates["bars"])
}

func TestRun_ClearAndSetSpec(t *testing.T) {
	result := runScenario(t, "name: clear\n"+flightsSetup+"charts:"+barsChart+`
steps:
  - action: select
    chart: bars
    selection: pick
    value: UA
  - action: clear
    chart: bars
    selection: pick
  - action: set_spec
    chart: bars
    spec:
      title: Replaced
      layers:
        - mark: rule
          encoding:
            y: { value: 1 }
assertions:
  - type: clause_count
    count: 0
  - type: layer_rows
    chart: bars
    count: 1
`)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "Replaced", result.State.Charts["bars"].Title)
}

func TestRun_SetupFailure(t *testing.T) {
	s := mustParse(t, "name: bad_setup\ntable: flights\nsetup:\n  - NOT SQL\ncharts:"+barsChart)

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0]")
}

func TestRun_StepFailure(t *testing.T) {
	s := mustParse(t, "name: bad_step\n"+flightsSetup+"charts:"+barsChart+`
steps:
  - action: update_spec
    chart: bars
    spec: [1, 2]
`)

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[0] update_spec")
}

func TestRun_Deterministic(t *testing.T) {
	doc := "name: repeat\n" + flightsSetup + "charts:" + barsChart + `
steps:
  - action: select
    chart: bars
    selection: pick
    value: DL
`
	first := runScenario(t, doc)
	second := runScenario(t, doc)
	assert.Equal(t, first.Snapshot, second.Snapshot)
	assert.Equal(t, first.State, second.State)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
