package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/landscore/internal/overpass"
	"github.com/sells-group/landscore/internal/scoring"
)

var _ overpass.Cache = (*SQLiteStore)(nil)
var _ overpass.Cache = (*PostgresStore)(nil)
var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)

func newTestSQLite(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_RunLifecycle(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	s := newTestSQLite(t, WithClock(clock))
	ctx := context.Background()

	run, err := s.CreateRun(ctx, RunParams{CRS: "EPSG:4326", BBox: "55.5,-4.8,56,-2.8"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Params, got.Params)
	assert.Nil(t, got.Summary)
	assert.True(t, got.CreatedAt.Equal(clock.Now()))

	clock.Advance(time.Minute)
	sum := &scoring.Summary{Count: 3, Min: 0.1, Mean: 0.4, Max: 0.9}
	require.NoError(t, s.CompleteRun(ctx, run.ID, RunStatusComplete, sum, ""))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, got.Status)
	assert.Equal(t, sum, got.Summary)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.CompleteRun(context.Background(), "missing", RunStatusFailed, nil, "boom")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ListRuns(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestSQLite(t, WithClock(clock))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		r, err := s.CreateRun(ctx, RunParams{CRS: "EPSG:4326"})
		require.NoError(t, err)
		ids = append(ids, r.ID)
		clock.Advance(time.Second)
	}
	require.NoError(t, s.CompleteRun(ctx, ids[0], RunStatusFailed, nil, "boom"))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)

	failed, err := s.ListRuns(ctx, RunFilter{Status: RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].Error)

	page, err := s.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)
}

func TestSQLite_Scores(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	run, err := s.CreateRun(ctx, RunParams{CRS: "EPSG:4326"})
	require.NoError(t, err)

	poly := orb.Polygon{{{-4.2, 55.8}, {-4.19, 55.8}, {-4.19, 55.81}, {-4.2, 55.8}}}
	rows := []ScoreRow{
		{ParcelID: 1, SourceID: "way/11", OverallScore: 0.7, Geometry: poly, Properties: map[string]any{"id": 1.0, "overallScore": 0.7}},
		{ParcelID: 0, SourceID: "way/10", OverallScore: 0.2, Geometry: poly, Properties: map[string]any{"id": 0.0, "overallScore": 0.2}},
	}
	n, err := s.SaveScores(ctx, run.ID, 4326, rows)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := s.ListScores(ctx, run.ID, Page{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ParcelID)
	assert.Equal(t, "way/10", got[0].SourceID)
	assert.Equal(t, poly, got[0].Geometry)
	assert.Equal(t, 0.2, got[0].Properties["overallScore"])

	page, err := s.ListScores(ctx, run.ID, Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 1, page[0].ParcelID)
}

func TestSQLite_QueryCache(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, ok, err := s.GetCachedQuery(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetCachedQuery(ctx, "k", []byte(`{"elements":[]}`)))
	require.NoError(t, s.SetCachedQuery(ctx, "k", []byte(`{"elements":[1]}`)))

	data, ok, err := s.GetCachedQuery(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"elements":[1]}`, string(data))
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	_, err = s.ListRuns(context.Background(), RunFilter{})
	assert.NoError(t, err)

	_, err = Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}
