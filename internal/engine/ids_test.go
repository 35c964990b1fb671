package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator

	a := g.Generate()
	b := g.Generate()
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("chart-a", "chart-b")

	assert.Equal(t, "chart-a", g.Generate())
	assert.Equal(t, "chart-b", g.Generate())
	assert.Equal(t, "id-3", g.Generate())
	assert.Equal(t, "id-4", g.Generate())
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("layer")

	assert.Equal(t, "layer-1", g.Generate())
	assert.Equal(t, "layer-2", g.Generate())
}
