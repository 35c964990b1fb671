package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTest_AssertionsOnly(t *testing.T) {
	out, err := execute(t, "test", scenariosDir, "--golden-dir", t.TempDir())
	require.NoError(t, err, out)

	for _, name := range []string{"brush_filter", "cross_filter", "destroy_releases", "reset_clears", "spec_update"} {
		assert.Contains(t, out, "✓ "+name+"\n")
	}
	assert.Contains(t, out, "Test Summary: 5 passed, 0 failed, 5 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTest_MatchesHarnessGoldens(t *testing.T) {
	out, err := execute(t, "test", scenariosDir, "--golden-dir", "../harness/testdata/golden")
	require.NoError(t, err, out)
	assert.Contains(t, out, "5 passed")
}

func TestTest_UpdateThenCompare(t *testing.T) {
	golden := t.TempDir()

	out, err := execute(t, "test", scenariosDir, "--golden-dir", golden, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ cross_filter (golden updated)")

	data, err := os.ReadFile(filepath.Join(golden, "cross_filter.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario":"cross_filter"`)

	out, err = execute(t, "test", scenariosDir, "--golden-dir", golden)
	require.NoError(t, err, out)

	require.NoError(t, os.WriteFile(filepath.Join(golden, "cross_filter.golden"), []byte("{}"), 0644))
	out, err = execute(t, "test", scenariosDir, "--golden-dir", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ cross_filter")
	assert.Contains(t, out, "does not match golden file")
	assert.Contains(t, out, "4 passed, 1 failed, 5 total")
}

func TestTest_Filter(t *testing.T) {
	out, err := execute(t, "test", scenariosDir, "--golden-dir", t.TempDir(), "--filter", "brush_*", "--format", "json")
	require.NoError(t, err, out)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "brush_filter", result.Scenarios[0].Name)
}

func TestTest_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong_count
table: t
setup:
  - CREATE TABLE t AS SELECT range AS v FROM range(4)
charts:
  - id: points
    spec:
      layers:
        - mark: point
          encoding:
            x: { field: v }
            y: { field: v }
assertions:
  - type: layer_rows
    chart: points
    count: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_count.yaml"), []byte(scenario), 0644))

	out, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios, 1)
	require.NotEmpty(t, result.Scenarios[0].Errors)
	assert.Contains(t, result.Scenarios[0].Errors[0], "Assertion failed: layer_rows")
}

func TestTest_LoadErrorReported(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: bad\n"), 0644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ bad.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTest_NoScenarios(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTest_MissingDirectory(t *testing.T) {
	_, err := execute(t, "test", "does/not/exist")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFindScenarioFiles(t *testing.T) {
	files, err := findScenarioFiles(scenariosDir, "*_filter")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "brush_filter.yaml", filepath.Base(files[0]))
	assert.Equal(t, "cross_filter.yaml", filepath.Base(files[1]))

	_, err = findScenarioFiles(scenariosDir, "[")
	require.Error(t, err)
}
