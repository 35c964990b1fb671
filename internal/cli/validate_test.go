package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidFiles(t *testing.T) {
	out, err := execute(t, "validate",
		specsDir+"/carriers.json",
		specsDir+"/delays.yaml",
		specsDir+"/histogram.cue",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All specs valid (3 file(s))")
}

func TestValidate_InvalidFile(t *testing.T) {
	out, err := execute(t, "validate", specsDir+"/invalid.json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+specsDir+"/invalid.json")
	for _, code := range []string{"[E202]", "[E204]", "[E210]"} {
		assert.Contains(t, out, code)
	}
}

func TestValidate_DirectoryJSON(t *testing.T) {
	out, err := execute(t, "validate", specsDir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E202", resp.Error.Code)

	assert.False(t, result.Valid)
	require.Len(t, result.Files, 4)
	valid := map[string]bool{}
	for _, f := range result.Files {
		valid[filepath.Base(f.File)] = f.Valid
	}
	assert.Equal(t, map[string]bool{
		"carriers.json": true,
		"delays.yaml":   true,
		"histogram.cue": true,
		"invalid.json":  false,
	}, valid)
}

func TestValidate_ParseErrorReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("layers: [\n"), 0644))

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "[E201]")
}

func TestValidate_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing_path", []string{"validate", "does/not/exist.json"}, ErrCodeNotFound},
		{"empty_dir", []string{"validate", t.TempDir()}, ErrCodeNoFiles},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}
