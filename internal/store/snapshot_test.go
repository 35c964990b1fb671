package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crossplot/internal/chart"
	"github.com/roach88/crossplot/internal/spec"
)

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSave_LoadRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	st := createTestState()

	id, err := s.Save(ctx, "main", st)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	got, err := s.Load(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, chart.StateVersion, got.Version)
	assert.True(t, got.Timestamp.Equal(testTime), "timestamp = %v", got.Timestamp)
	assert.Equal(t, st.Predicate, got.Predicate)
	assert.Equal(t, st.Layout, got.Layout)
	assert.Nil(t, got.LayoutStates)

	require.Len(t, got.Charts, 2)
	for id, want := range st.Charts {
		assert.True(t, spec.Equal(want, got.Charts[id]), "chart %s spec changed", id)
	}
	assert.Equal(t, st.ChartStates["a"], got.ChartStates["a"])
	assert.Empty(t, got.ChartStates["b"])
}

func TestSave_IdenticalContentIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createTestState()
	id1, err := s.Save(ctx, "main", first)
	require.NoError(t, err)

	// A later timestamp and a missing empty state do not change content.
	second := createTestState()
	second.Timestamp = testTime.Add(time.Hour)
	delete(second.ChartStates, "b")
	id2, err := s.Save(ctx, "main", second)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, countRows(t, s, "snapshots"))
	assert.Equal(t, 2, countRows(t, s, "snapshot_charts"))
}

func TestSave_SameContentDifferentName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id1, err := s.Save(ctx, "main", createTestState())
	require.NoError(t, err)
	id2, err := s.Save(ctx, "backup", createTestState())
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	// Specs are content-addressed and shared.
	assert.Equal(t, 2, countRows(t, s, "specs"))
}

func TestSave_ChangedStateCreatesSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id1, err := s.Save(ctx, "main", createTestState())
	require.NoError(t, err)

	st := createTestState()
	st.ChartStates["b"] = map[string]any{"pick": []any{"AA"}}
	id2, err := s.Save(ctx, "main", st)
	require.NoError(t, err)

	assert.Greater(t, id2, id1)
	assert.Equal(t, 2, countRows(t, s, "specs"))
}

func TestSave_RequiresName(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Save(context.Background(), "", createTestState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestSave_EmptyState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, "empty", chart.AppState{Version: chart.StateVersion, Timestamp: testTime})
	require.NoError(t, err)

	got, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.Charts)
	assert.Empty(t, got.ChartStates)
	assert.Nil(t, got.Layout)
}

func TestLoad_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Load(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLatest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "main", createTestState())
	require.NoError(t, err)

	st := createTestState()
	st.Predicate = ""
	st.ChartStates["a"] = map[string]any{}
	want, err := s.Save(ctx, "main", st)
	require.NoError(t, err)

	_, err = s.Save(ctx, "other", createTestState())
	require.NoError(t, err)

	got, id, err := s.Latest(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, want, id)
	assert.Empty(t, got.Predicate)
	assert.Empty(t, got.ChartStates["a"])
}

func TestLatest_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, _, err := s.Latest(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = s.Save(ctx, "main", createTestState())
	require.NoError(t, err)
	_, err = s.Save(ctx, "other", chart.AppState{Version: chart.StateVersion, Timestamp: testTime})
	require.NoError(t, err)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "main", all[0].Name)
	assert.Equal(t, 2, all[0].Charts)
	assert.Equal(t, `"delay" BETWEEN 0 AND 10`, all[0].Predicate)
	assert.True(t, all[0].CreatedAt.Equal(testTime))
	assert.Len(t, all[0].Hash, 64)
	assert.Equal(t, "other", all[1].Name)
	assert.Equal(t, 0, all[1].Charts)

	named, err := s.List(ctx, "other")
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, all[1].ID, named[0].ID)
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, "main", createTestState())
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))
	assert.Equal(t, 0, countRows(t, s, "snapshots"))
	assert.Equal(t, 0, countRows(t, s, "snapshot_charts"))
	assert.Equal(t, 2, countRows(t, s, "specs"))

	require.ErrorIs(t, s.Delete(ctx, id), ErrNotFound)
}
