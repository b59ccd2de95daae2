package geometry

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(minX, minY, size float64) orb.Polygon {
	return orb.Polygon{{
		{minX, minY}, {minX + size, minY}, {minX + size, minY + size}, {minX, minY + size}, {minX, minY},
	}}
}

func TestIsGeographic(t *testing.T) {
	assert.True(t, IsGeographic(""))
	assert.True(t, IsGeographic("EPSG:4326"))
	assert.True(t, IsGeographic("urn:ogc:def:crs:OGC:1.3:CRS84"))
	assert.False(t, IsGeographic("EPSG:27700"))
}

func TestProjector_RoundTrip(t *testing.T) {
	p := NewLocalProjector(orb.Point{-4.25, 55.86})

	in := orb.Point{-4.2, 55.9}
	out := p.Inverse(p.Forward(in))
	assert.InDelta(t, in.Lon(), out.Lon(), 1e-9)
	assert.InDelta(t, in.Lat(), out.Lat(), 1e-9)

	// One degree of latitude is roughly 111km.
	north := p.Forward(orb.Point{-4.25, 56.86})
	assert.InDelta(t, 111_319, north.Y(), 100)
	assert.InDelta(t, 0, north.X(), 1e-6)
}

func TestProjector_ProjectDoesNotMutate(t *testing.T) {
	p := NewLocalProjector(orb.Point{0, 0})
	poly := square(1, 1, 1)

	projected := p.Project(poly).(orb.Polygon)
	assert.Equal(t, 1.0, poly[0][0][0])
	assert.NotEqual(t, poly[0][0][0], projected[0][0][0])

	back := p.Unproject(projected).(orb.Polygon)
	for i := range poly[0] {
		assert.InDelta(t, poly[0][i][0], back[0][i][0], 1e-9)
		assert.InDelta(t, poly[0][i][1], back[0][i][1], 1e-9)
	}
}

func TestProjectorFor(t *testing.T) {
	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}

	id := ProjectorFor("EPSG:27700", bound)
	assert.Equal(t, orb.Point{5, 5}, id.Forward(orb.Point{5, 5}))

	local := ProjectorFor(WGS84, bound)
	assert.Equal(t, orb.Point{0, 0}, local.Forward(orb.Point{1, 1}))
}

func TestProjectorFor_NationalGrid(t *testing.T) {
	glasgow := orb.Bound{Min: orb.Point{-4.4, 55.8}, Max: orb.Point{-4.1, 55.95}}
	p := ProjectorFor(WGS84, glasgow)

	pt := orb.Point{-4.25, 55.86}
	en := p.Forward(pt)
	assert.InDelta(t, 259_000, en.X(), 5_000)
	assert.InDelta(t, 665_000, en.Y(), 5_000)

	back := p.Inverse(en)
	assert.InDelta(t, pt.Lon(), back.Lon(), 1e-5)
	assert.InDelta(t, pt.Lat(), back.Lat(), 1e-5)

	// A 1km northward step stays about 1km on the grid.
	north := p.Forward(orb.Point{-4.25, 55.86 + 1000.0/111_320})
	assert.InDelta(t, 1000, north.Y()-en.Y(), 10)
}

func TestEPSGCode(t *testing.T) {
	tests := []struct {
		crs  string
		code int
		ok   bool
	}{
		{"", 4326, true},
		{"EPSG:4326", 4326, true},
		{"urn:ogc:def:crs:OGC:1.3:CRS84", 4326, true},
		{"EPSG:27700", 27700, true},
		{"urn:ogc:def:crs:EPSG::27700", 27700, true},
		{`PROJCS["British_National_Grid",GEOGCS["GCS_OSGB_1936"]]`, 27700, true},
		{`PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere"]`, 3857, true},
		{`PROJCS["NAD_1983_UTM_Zone_10N"]`, 0, false},
		{"EPSG:abc", 0, false},
		{"local", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.crs, func(t *testing.T) {
			code, ok := EPSGCode(tt.crs)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestSameCRS(t *testing.T) {
	assert.True(t, SameCRS("", "EPSG:4326"))
	assert.True(t, SameCRS("urn:ogc:def:crs:EPSG::27700", "EPSG:27700"))
	assert.False(t, SameCRS("EPSG:4326", "EPSG:27700"))
	assert.True(t, SameCRS("custom", "CUSTOM"))
}

func TestTransformer(t *testing.T) {
	toGrid, err := NewTransformer(WGS84, BritishNationalGrid)
	require.NoError(t, err)
	fromGrid, err := NewTransformer(BritishNationalGrid, WGS84)
	require.NoError(t, err)

	poly := square(-4.0, 55.8, 0.01)
	projected := toGrid.Geometry(poly).(orb.Polygon)
	assert.Equal(t, -4.0, poly[0][0][0])
	assert.Greater(t, projected[0][0].X(), 100_000.0)

	// About 625m by 1110m at this latitude.
	_, area := CentroidArea(projected)
	assert.InEpsilon(t, 0.01*0.01*111_320*111_320*math.Cos(55.805*math.Pi/180), area, 0.02)

	back := fromGrid.Geometry(projected).(orb.Polygon)
	for i := range poly[0] {
		assert.InDelta(t, poly[0][i][0], back[0][i][0], 1e-5)
		assert.InDelta(t, poly[0][i][1], back[0][i][1], 1e-5)
	}
	assert.Nil(t, toGrid.Geometry(nil))
}

func TestNewTransformer_Unsupported(t *testing.T) {
	_, err := NewTransformer(WGS84, "EPSG:32630")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedCRS)
}

func TestCircle(t *testing.T) {
	c := Circle(orb.Point{10, 20}, 100, 0)
	require.Len(t, c, 1)
	assert.Len(t, c[0], DefaultSegments+1)
	assert.Equal(t, c[0][0], c[0][len(c[0])-1])

	_, area := CentroidArea(c)
	assert.InEpsilon(t, math.Pi*100*100, area, 0.01)
}

func TestCentroidArea(t *testing.T) {
	centroid, area := CentroidArea(square(0, 0, 10))
	assert.InDelta(t, 5, centroid.X(), 1e-9)
	assert.InDelta(t, 5, centroid.Y(), 1e-9)
	assert.InDelta(t, 100, area, 1e-9)
}

func TestShape_Intersects(t *testing.T) {
	a := Prepare(square(0, 0, 10))

	assert.True(t, a.Intersects(Prepare(square(5, 5, 10))), "overlap")
	assert.True(t, a.Intersects(Prepare(square(2, 2, 2))), "contained")
	assert.False(t, a.Intersects(Prepare(square(20, 20, 5))), "disjoint")
}

func TestShape_BoundOverlapWithoutIntersection(t *testing.T) {
	buffer := Prepare(Circle(orb.Point{0, 0}, 10, 0))
	triangle := Prepare(orb.Polygon{{{8, 8}, {20, 8}, {20, 20}, {8, 8}}})

	require.True(t, buffer.Bound.Intersects(triangle.Bound))
	assert.False(t, buffer.Intersects(triangle))
}

func TestShape_MultiPolygon(t *testing.T) {
	mp := Prepare(orb.MultiPolygon{square(100, 100, 1), square(0, 0, 1)})
	assert.True(t, mp.Intersects(Prepare(square(0.5, 0.5, 1))))
	assert.False(t, Prepare(orb.Point{1, 1}).Intersects(mp))
	assert.True(t, Prepare(orb.Point{1, 1}).Empty())
}

func TestShape_Within(t *testing.T) {
	outer := Prepare(square(0, 0, 10))

	assert.True(t, Prepare(square(1, 1, 2)).Within(outer))
	assert.False(t, Prepare(square(8, 8, 4)).Within(outer))
	assert.False(t, Prepare(orb.MultiPolygon{square(1, 1, 1), square(20, 20, 1)}).Within(outer))
}

func TestDistanceTo(t *testing.T) {
	sq := square(0, 0, 10)
	assert.Equal(t, 0.0, DistanceTo(sq, orb.Point{5, 5}))
	assert.InDelta(t, 5, DistanceTo(sq, orb.Point{15, 5}), 1e-9)
	assert.InDelta(t, 3, DistanceTo(orb.MultiPolygon{sq}, orb.Point{5, -3}), 1e-9)
}
