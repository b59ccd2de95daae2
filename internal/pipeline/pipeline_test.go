package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/landscore/internal/geometry"
	"github.com/sells-group/landscore/internal/layer"
	"github.com/sells-group/landscore/internal/overpass"
	"github.com/sells-group/landscore/internal/scoring"
	"github.com/sells-group/landscore/internal/store"
)

type stubSource struct {
	layer *layer.Layer
	err   error
	calls int
}

func (s *stubSource) Fetch(context.Context, overpass.BBox, int) (*layer.Layer, error) {
	s.calls++
	return s.layer, s.err
}

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

func writeReference(t *testing.T, dir, crs string) string {
	t.Helper()
	return writeReferenceGeometry(t, dir, crs, square(-4.001, 55.799, 0.002))
}

func writeReferenceGeometry(t *testing.T, dir, crs string, g orb.Geometry) string {
	t.Helper()
	f := geojson.NewFeature(g)
	f.Properties["DataZone"] = "S01000001"
	f.Properties["EARNINGS"] = 500.0
	f.Properties["norm_EARNINGS"] = 0.8
	path := filepath.Join(dir, "zones.geojson")
	require.NoError(t, layer.Write(path, &layer.Layer{CRS: crs, Features: []*geojson.Feature{f}}))
	return path
}

func parcelLayer() *layer.Layer {
	near := geojson.NewFeature(square(-4.0001, 55.7999, 0.0002))
	near.ID = int64(101)
	far := geojson.NewFeature(square(-3.5, 55.8, 0.0002))
	far.ID = int64(102)
	return &layer.Layer{CRS: geometry.WGS84, Features: []*geojson.Feature{near, far}}
}

func testParams(dir, ref string) Params {
	return Params{
		BBox:           overpass.BBox{South: 55.5, West: -4.8, North: 56, East: -2.8},
		TimeoutSecs:    300,
		ReferencePath:  ref,
		RequiredFields: []string{"DataZone"},
		ParcelsPath:    filepath.Join(dir, "parcels.geojson"),
		OutputPath:     filepath.Join(dir, "scored.geojson"),
		Workers:        2,
	}
}

func TestRun_WritesScoredLayer(t *testing.T) {
	dir := t.TempDir()
	ref := writeReference(t, dir, "EPSG:4326")
	src := &stubSource{layer: parcelLayer()}
	p := New(src, scoring.NewEngine(nil, scoring.Options{}))

	var counted int
	params := testParams(dir, ref)
	params.OnParcels = func(n int) { counted = n }

	res, err := p.Run(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 2, counted)
	assert.Equal(t, 2, res.Parcels)
	assert.Equal(t, 2, res.Summary.Count)
	assert.InDelta(t, 0.0, res.Summary.Min, 1e-12)
	assert.InDelta(t, 0.8, res.Summary.Max, 1e-12)

	out, err := layer.Read(params.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "EPSG:4326", out.CRS)
	require.Len(t, out.Features, 2)

	first := out.Features[0].Properties
	assert.InDelta(t, 0.8, first["overallScore"], 1e-12)
	assert.EqualValues(t, 1, first["datazonesCount"])
	assert.Equal(t, "S01000001", first["DataZone"])
	assert.InDelta(t, 500, first["EARNINGS"], 1e-9)
	assert.InDelta(t, 0.8, first["norm_EARNINGS"], 1e-12)

	second := out.Features[1].Properties
	assert.EqualValues(t, 1, second["id"])
	assert.EqualValues(t, 0, second["overallScore"])
	assert.EqualValues(t, 0, second["datazonesCount"])

	// Parcel geometry passes through unchanged.
	assert.Equal(t, parcelLayer().Features[0].Geometry, out.Features[0].Geometry)

	_, err = os.Stat(params.ParcelsPath)
	assert.NoError(t, err)
}

func TestRun_MissingReference(t *testing.T) {
	dir := t.TempDir()
	src := &stubSource{layer: parcelLayer()}
	p := New(src, scoring.NewEngine(nil, scoring.Options{}))
	params := testParams(dir, filepath.Join(dir, "missing.geojson"))

	_, err := p.Run(context.Background(), params)
	require.Error(t, err)
	assert.True(t, errors.Is(err, layer.ErrMissingFile))
	assert.Zero(t, src.calls)
	assert.NoFileExists(t, params.OutputPath)
}

func TestRun_MissingRequiredField(t *testing.T) {
	dir := t.TempDir()
	ref := writeReference(t, dir, "EPSG:4326")
	src := &stubSource{layer: parcelLayer()}
	p := New(src, scoring.NewEngine(nil, scoring.Options{}))
	params := testParams(dir, ref)
	params.RequiredFields = []string{"DataZone", "norm_HOUSE SALES PRICE"}

	_, err := p.Run(context.Background(), params)
	var mfe *layer.MissingFieldError
	require.ErrorAs(t, err, &mfe)
	assert.Equal(t, "norm_HOUSE SALES PRICE", mfe.Field)
	assert.Zero(t, src.calls)
	assert.NoFileExists(t, params.OutputPath)
}

func TestRun_ProjectedReference(t *testing.T) {
	dir := t.TempDir()
	toGrid, err := geometry.NewTransformer(geometry.WGS84, geometry.BritishNationalGrid)
	require.NoError(t, err)
	ref := writeReferenceGeometry(t, dir, geometry.BritishNationalGrid, toGrid.Geometry(square(-4.001, 55.799, 0.002)))

	src := &stubSource{layer: parcelLayer()}
	p := New(src, scoring.NewEngine(nil, scoring.Options{}))
	params := testParams(dir, ref)

	res, err := p.Run(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, geometry.WGS84, res.CRS)
	assert.InDelta(t, 0.8, res.Summary.Max, 1e-12)
	assert.InDelta(t, 0.0, res.Summary.Min, 1e-12)

	// Scoring happens on the grid; the output is back in parcel coordinates.
	require.Len(t, res.Scored, 2)
	assert.Greater(t, res.Scored[0].Parcel.Geometry.Bound().Min.X(), 100_000.0)

	out, err := layer.Read(params.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, geometry.WGS84, out.CRS)
	require.Len(t, out.Features, 2)
	assert.InDelta(t, 0.8, out.Features[0].Properties["overallScore"], 1e-12)
	assert.Equal(t, "S01000001", out.Features[0].Properties["DataZone"])

	want := parcelLayer().Features[0].Geometry.(orb.Polygon)
	got := out.Features[0].Geometry.(orb.Polygon)
	require.Len(t, got[0], len(want[0]))
	for i := range want[0] {
		assert.InDelta(t, want[0][i][0], got[0][i][0], 1e-5)
		assert.InDelta(t, want[0][i][1], got[0][i][1], 1e-5)
	}
}

func TestRun_UnsupportedReferenceCRS(t *testing.T) {
	dir := t.TempDir()
	ref := writeReference(t, dir, "EPSG:32630")
	src := &stubSource{layer: parcelLayer()}
	p := New(src, scoring.NewEngine(nil, scoring.Options{}))

	_, err := p.Run(context.Background(), testParams(dir, ref))
	require.Error(t, err)
	assert.ErrorIs(t, err, geometry.ErrUnsupportedCRS)
	assert.Zero(t, src.calls)
}

func TestRun_SourceError(t *testing.T) {
	dir := t.TempDir()
	ref := writeReference(t, dir, "")
	src := &stubSource{err: &overpass.StatusError{StatusCode: 400, Body: "bad query"}}
	p := New(src, scoring.NewEngine(nil, scoring.Options{}))
	params := testParams(dir, ref)

	_, err := p.Run(context.Background(), params)
	var se *overpass.StatusError
	require.ErrorAs(t, err, &se)
	assert.NoFileExists(t, params.OutputPath)
	assert.NoFileExists(t, params.ParcelsPath)
}

func TestRun_DefaultsCRS(t *testing.T) {
	dir := t.TempDir()
	ref := writeReference(t, dir, "")
	p := New(&stubSource{layer: parcelLayer()}, scoring.NewEngine(nil, scoring.Options{}))

	res, err := p.Run(context.Background(), testParams(dir, ref))
	require.NoError(t, err)
	assert.Equal(t, geometry.WGS84, res.CRS)
}

func TestRun_PersistsToStore(t *testing.T) {
	dir := t.TempDir()
	ref := writeReference(t, dir, "EPSG:4326")
	ctx := context.Background()

	st, err := store.Open(ctx, "sqlite", filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	p := New(&stubSource{layer: parcelLayer()}, scoring.NewEngine(nil, scoring.Options{}), WithStore(st))
	res, err := p.Run(ctx, testParams(dir, ref))
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusComplete, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, res.Summary, *run.Summary)
	assert.Equal(t, "55.5,-4.8,56,-2.8", run.Params.BBox)

	rows, err := st.ListScores(ctx, res.RunID, store.Page{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "101", rows[0].SourceID)
	assert.InDelta(t, 0.8, rows[0].OverallScore, 1e-12)
	assert.Equal(t, "102", rows[1].SourceID)
}

func TestRun_CancelledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	ref := writeReference(t, dir, "EPSG:4326")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(&stubSource{layer: parcelLayer()}, scoring.NewEngine(nil, scoring.Options{}))
	params := testParams(dir, ref)

	_, err := p.Run(ctx, params)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, params.OutputPath)
}

func TestSourceID(t *testing.T) {
	assert.Equal(t, "", sourceID(nil))
	assert.Equal(t, "abc", sourceID("abc"))
	assert.Equal(t, "123", sourceID(float64(123)))
	assert.Equal(t, "42", sourceID(int64(42)))
}
