package layer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zonesJSON = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:OGC:1.3:CRS84"}},
  "features": [
    {"type": "Feature", "properties": {"DataZone": "S01000001", "EARNINGS": 510, "norm_EARNINGS": 0.4, "note": "n/a"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"DataZone": "S01000002", "EARNINGS": "620.5"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[2,2],[3,2],[3,3],[2,3],[2,2]]]]}},
    {"type": "Feature", "properties": {"DataZone": "S01000003"},
     "geometry": {"type": "Point", "coordinates": [5,5]}}
  ]
}`

func TestDecode_CRS(t *testing.T) {
	l, err := Decode([]byte(zonesJSON))
	require.NoError(t, err)
	assert.Equal(t, "urn:ogc:def:crs:OGC:1.3:CRS84", l.CRS)
	assert.Len(t, l.Features, 3)
}

func TestEncode_RoundTripCRS(t *testing.T) {
	l := &Layer{CRS: "EPSG:4326"}
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
	f.Properties["overallScore"] = 0.5
	l.Features = append(l.Features, f)

	data, err := Encode(l)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"crs"`)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "EPSG:4326", back.CRS)
	require.Len(t, back.Features, 1)
	assert.Equal(t, 0.5, back.Features[0].Properties["overallScore"])
}

func TestEncode_NoCRS(t *testing.T) {
	data, err := Encode(&Layer{})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"crs"`)
	assert.Contains(t, string(data), `"features": []`)
}

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "zones.geojson")

	l, err := Decode([]byte(zonesJSON))
	require.NoError(t, err)
	require.NoError(t, Write(path, l))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")

	back, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, l.CRS, back.CRS)
	assert.Len(t, back.Features, 3)
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.geojson"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMissingFile))
}

func TestValidateFields(t *testing.T) {
	l, err := Decode([]byte(zonesJSON))
	require.NoError(t, err)

	assert.NoError(t, ValidateFields(l, "zones", []string{"DataZone", "norm_EARNINGS"}))

	err = ValidateFields(l, "zones", []string{"DataZone", "norm_HEALTH OUTCOMES"})
	var mf *MissingFieldError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, "norm_HEALTH OUTCOMES", mf.Field)
	assert.Contains(t, err.Error(), "zones")
}

func TestLoadZones_MissingField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.geojson")
	require.NoError(t, os.WriteFile(path, []byte(zonesJSON), 0o644))

	_, _, err := LoadZones(path, []string{"CouncilArea"})
	var mf *MissingFieldError
	require.True(t, errors.As(err, &mf))

	l, zones, err := LoadZones(path, []string{"DataZone"})
	require.NoError(t, err)
	assert.Len(t, l.Features, 3)
	assert.Len(t, zones, 2)
}

func TestZones(t *testing.T) {
	l, err := Decode([]byte(zonesJSON))
	require.NoError(t, err)

	zones := Zones(l)
	require.Len(t, zones, 2, "point feature skipped")

	assert.InDelta(t, 510, zones[0].Indicator("EARNINGS").Value, 1e-9)
	assert.InDelta(t, 0.4, zones[0].Indicator("norm_EARNINGS").Value, 1e-9)
	assert.Equal(t, "S01000001", zones[0].Attributes["DataZone"])
	assert.Equal(t, "n/a", zones[0].Attributes["note"])
	assert.InDelta(t, 620.5, zones[1].Indicator("EARNINGS").Value, 1e-9)
	assert.False(t, zones[1].Indicator("norm_EARNINGS").Valid)
}

func TestParcels(t *testing.T) {
	l, err := Decode([]byte(zonesJSON))
	require.NoError(t, err)

	parcels := Parcels(l, false)
	require.Len(t, parcels, 2)
	assert.Equal(t, 0, parcels[0].Index)
	assert.Equal(t, 1, parcels[1].Index)
	assert.Empty(t, parcels[0].Properties)

	kept := Parcels(l, true)
	assert.Equal(t, "S01000001", kept[0].Properties["DataZone"])
}

func TestLayer_Bound(t *testing.T) {
	l, err := Decode([]byte(zonesJSON))
	require.NoError(t, err)
	b := l.Bound()
	assert.Equal(t, orb.Point{0, 0}, b.Min)
	assert.Equal(t, orb.Point{5, 5}, b.Max)
}

// placeDBF moves the attribute table go-shp's writer leaves at "<base>dbf"
// to "<base>.dbf", where its reader looks for it.
func placeDBF(t *testing.T, dir, base string) {
	t.Helper()
	want := filepath.Join(dir, base+".dbf")
	if _, err := os.Stat(want); err == nil {
		return
	}
	require.NoError(t, os.Rename(filepath.Join(dir, base+"dbf"), want))
}

func TestReadShapefile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "councils.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("local_auth", 32),
		shp.FloatField("pop", 12, 2),
	}))

	outer := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}}
	row := w.Write((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{outer, hole})))
	require.NoError(t, w.WriteAttribute(int(row), 0, "Glasgow City"))
	require.NoError(t, w.WriteAttribute(int(row), 1, 1234.5))
	w.Close()
	placeDBF(t, dir, "councils")

	l, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "", l.CRS)
	require.Len(t, l.Features, 1)

	poly, ok := l.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, poly, 2, "ccw ring attached as hole")
	assert.Equal(t, "Glasgow City", l.Features[0].Properties["local_auth"])
	assert.InDelta(t, 1234.5, l.Features[0].Properties["pop"], 1e-9)
	assert.IsType(t, float64(0), l.Features[0].Properties["pop"])
}

func TestReproject(t *testing.T) {
	f := geojson.NewFeature(orb.Polygon{{{-4, 55.8}, {-3.99, 55.8}, {-3.99, 55.81}, {-4, 55.81}, {-4, 55.8}}})
	f.ID = int64(7)
	f.Properties["DataZone"] = "S1"
	src := &Layer{Features: []*geojson.Feature{f}}

	same, err := Reproject(src, "EPSG:4326")
	require.NoError(t, err)
	assert.Same(t, src, same)

	grid, err := Reproject(src, "EPSG:27700")
	require.NoError(t, err)
	assert.Equal(t, "EPSG:27700", grid.CRS)
	require.Len(t, grid.Features, 1)
	assert.Equal(t, int64(7), grid.Features[0].ID)
	assert.Equal(t, "S1", grid.Features[0].Properties["DataZone"])
	assert.Greater(t, grid.Features[0].Geometry.Bound().Min.X(), 100_000.0)

	// The source is untouched.
	assert.Equal(t, -4.0, src.Features[0].Geometry.Bound().Min.X())
	grid.Features[0].Properties["DataZone"] = "changed"
	assert.Equal(t, "S1", f.Properties["DataZone"])

	back, err := Reproject(grid, "EPSG:4326")
	require.NoError(t, err)
	assert.InDelta(t, -4.0, back.Features[0].Geometry.Bound().Min.X(), 1e-5)
	assert.InDelta(t, 55.8, back.Features[0].Geometry.Bound().Min.Y(), 1e-5)

	_, err = Reproject(src, "EPSG:32630")
	assert.Error(t, err)
}

func TestReadPrj(t *testing.T) {
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "a.shp")

	assert.Equal(t, "", readPrj(shpPath))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.prj"),
		[]byte(`GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984"]]`), 0o644))
	assert.Equal(t, "EPSG:4326", readPrj(shpPath))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.prj"),
		[]byte(`PROJCS["British_National_Grid"]`), 0o644))
	assert.Equal(t, `PROJCS["British_National_Grid"]`, readPrj(shpPath))
}
