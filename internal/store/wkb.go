package store

import (
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/landscore/internal/geometry"
)

// SRID returns the EPSG code for a CRS name, or 0 when it is not
// recognized. An empty name is WGS84.
func SRID(crs string) int {
	code, _ := geometry.EPSGCode(crs)
	return code
}

// EncodeGeometry converts a polygonal geometry to little-endian EWKB. Nil
// and non-polygonal geometries encode to nil.
func EncodeGeometry(g orb.Geometry, srid int) ([]byte, error) {
	var t geom.T
	switch v := g.(type) {
	case orb.Polygon:
		t = geom.NewPolygonFlat(geom.XY, flatPolygon(v), ends(v)).SetSRID(srid)
	case orb.MultiPolygon:
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)
		for _, p := range v {
			if err := mp.Push(geom.NewPolygonFlat(geom.XY, flatPolygon(p), ends(p))); err != nil {
				return nil, eris.Wrap(err, "store: build multipolygon")
			}
		}
		t = mp
	default:
		return nil, nil
	}
	data, err := ewkb.Marshal(t, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode EWKB")
	}
	return data, nil
}

// DecodeGeometry parses EWKB produced by EncodeGeometry.
func DecodeGeometry(data []byte) (orb.Geometry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	t, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "store: decode EWKB")
	}
	switch v := t.(type) {
	case *geom.Polygon:
		return toOrbPolygon(v), nil
	case *geom.MultiPolygon:
		mp := make(orb.MultiPolygon, v.NumPolygons())
		for i := range mp {
			mp[i] = toOrbPolygon(v.Polygon(i))
		}
		return mp, nil
	default:
		return nil, eris.Errorf("store: unsupported geometry %T", t)
	}
}

func flatPolygon(p orb.Polygon) []float64 {
	var flat []float64
	for _, r := range p {
		for _, pt := range r {
			flat = append(flat, pt[0], pt[1])
		}
	}
	return flat
}

func ends(p orb.Polygon) []int {
	out := make([]int, len(p))
	n := 0
	for i, r := range p {
		n += 2 * len(r)
		out[i] = n
	}
	return out
}

func toOrbPolygon(p *geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, p.NumLinearRings())
	for i := range out {
		coords := p.LinearRing(i).Coords()
		ring := make(orb.Ring, len(coords))
		for j, c := range coords {
			ring[j] = orb.Point{c.X(), c.Y()}
		}
		out[i] = ring
	}
	return out
}
