package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/landscore/internal/scoring"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface, *clockwork.FakeClock) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return newPostgresStore(mock, WithClock(clock)), mock, clock
}

var runColumns = []string{"id", "status", "params", "summary", "error", "created_at", "updated_at"}

func TestPostgres_Migrate(t *testing.T) {
	s, mock, _ := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateRun(t *testing.T) {
	s, mock, clock := newMockPostgresStore(t)
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "running", pgxmock.AnyArg(), clock.Now(), clock.Now()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), RunParams{CRS: "EPSG:4326"})
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, clock.Now(), run.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun_NotFound(t *testing.T) {
	s, mock, _ := newMockPostgresStore(t)
	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("complete", pgxmock.AnyArg(), "", pgxmock.AnyArg(), "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "nope", RunStatusComplete, &scoring.Summary{Count: 1}, "")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	s, mock, clock := newMockPostgresStore(t)
	params, _ := json.Marshal(RunParams{CRS: "EPSG:27700"})
	summary, _ := json.Marshal(scoring.Summary{Count: 2, Min: 0.1, Mean: 0.2, Max: 0.3})

	mock.ExpectQuery(`SELECT id, status, params, summary, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("r1", "complete", params, summary, "", clock.Now(), clock.Now()))

	run, err := s.GetRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, run.Status)
	assert.Equal(t, "EPSG:27700", run.Params.CRS)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 2, run.Summary.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun_NotFound(t *testing.T) {
	s, mock, _ := newMockPostgresStore(t)
	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListRuns(t *testing.T) {
	s, mock, clock := newMockPostgresStore(t)
	params, _ := json.Marshal(RunParams{CRS: "EPSG:4326"})
	mock.ExpectQuery(`FROM runs`).
		WithArgs("failed", 100, 0).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("r2", "failed", params, nil, "boom", clock.Now(), clock.Now()))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "boom", runs[0].Error)
	assert.Nil(t, runs[0].Summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveScores(t *testing.T) {
	s, mock, _ := newMockPostgresStore(t)
	mock.ExpectCopyFrom(pgx.Identifier{"parcel_scores"}, scoreColumns).
		WillReturnResult(2)

	poly := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}
	n, err := s.SaveScores(context.Background(), "r1", 4326, []ScoreRow{
		{ParcelID: 0, Geometry: poly, Properties: map[string]any{"id": 0}},
		{ParcelID: 1, Geometry: poly, Properties: map[string]any{"id": 1}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListScores(t *testing.T) {
	s, mock, _ := newMockPostgresStore(t)
	poly := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}
	geomB, err := EncodeGeometry(poly, 4326)
	require.NoError(t, err)

	mock.ExpectQuery(`FROM parcel_scores`).
		WithArgs("r1", 1000, 0).
		WillReturnRows(pgxmock.NewRows([]string{"parcel_id", "source_id", "overall_score", "geom", "properties"}).
			AddRow(0, "way/1", 0.5, geomB, []byte(`{"overallScore":0.5}`)))

	rows, err := s.ListScores(context.Background(), "r1", Page{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, poly, rows[0].Geometry)
	assert.Equal(t, 0.5, rows[0].Properties["overallScore"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_QueryCache(t *testing.T) {
	s, mock, clock := newMockPostgresStore(t)
	mock.ExpectQuery(`SELECT data FROM overpass_cache`).
		WithArgs("k").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO overpass_cache`).
		WithArgs("k", []byte("{}"), clock.Now()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT data FROM overpass_cache`).
		WithArgs("k").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte("{}")))

	ctx := context.Background()
	_, ok, err := s.GetCachedQuery(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetCachedQuery(ctx, "k", []byte("{}")))

	data, ok, err := s.GetCachedQuery(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "{}", string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}
