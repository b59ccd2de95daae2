// Package geometry holds the planar helpers used for distance and area math:
// CRS transforms, metric projection, circular buffers, centroids and exact
// polygon predicates.
package geometry

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// WGS84 is the CRS name attached to layers that do not declare one.
const WGS84 = "EPSG:4326"

// IsGeographic reports whether crs names longitude/latitude degrees. An
// empty CRS is assumed to be WGS84.
func IsGeographic(crs string) bool {
	switch strings.ToLower(strings.TrimSpace(crs)) {
	case "", "epsg:4326", "wgs84", "ogc:crs84",
		"urn:ogc:def:crs:ogc:1.3:crs84",
		"urn:ogc:def:crs:ogc::crs84",
		"urn:ogc:def:crs:epsg::4326":
		return true
	default:
		return false
	}
}

// Projector maps between a layer's CRS and a planar meters-based system.
// Geographic layers inside Great Britain use the National Grid; elsewhere
// an equirectangular projection tangent at the origin latitude is used,
// accurate to well under 1% at city scale. Layers that are already
// projected use the identity.
type Projector struct {
	fwd func(orb.Point) orb.Point
	inv func(orb.Point) orb.Point
}

// NewLocalProjector returns an equirectangular projector centred on origin
// (lon, lat in degrees).
func NewLocalProjector(origin orb.Point) *Projector {
	cosLat := math.Cos(origin.Lat() * math.Pi / 180)
	const rad, deg = math.Pi / 180, 180 / math.Pi
	return &Projector{
		fwd: func(pt orb.Point) orb.Point {
			return orb.Point{
				orb.EarthRadius * (pt.Lon() - origin.Lon()) * rad * cosLat,
				orb.EarthRadius * (pt.Lat() - origin.Lat()) * rad,
			}
		},
		inv: func(pt orb.Point) orb.Point {
			return orb.Point{
				origin.Lon() + pt.X()/(orb.EarthRadius*cosLat)*deg,
				origin.Lat() + pt.Y()/orb.EarthRadius*deg,
			}
		},
	}
}

// NewNationalGridProjector maps WGS84 lon/lat to British National Grid
// eastings and northings.
func NewNationalGridProjector() *Projector {
	fwd, err := NewTransformer(WGS84, BritishNationalGrid)
	if err != nil {
		panic(err)
	}
	inv, err := NewTransformer(BritishNationalGrid, WGS84)
	if err != nil {
		panic(err)
	}
	return &Projector{fwd: fwd.Point, inv: inv.Point}
}

// IdentityProjector returns a projector that leaves coordinates untouched.
func IdentityProjector() *Projector {
	id := func(pt orb.Point) orb.Point { return pt }
	return &Projector{fwd: id, inv: id}
}

// ProjectorFor picks the projector for a layer with the given CRS and bounds.
func ProjectorFor(crs string, bound orb.Bound) *Projector {
	if !IsGeographic(crs) {
		return IdentityProjector()
	}
	if gbExtent.Contains(bound.Min) && gbExtent.Contains(bound.Max) {
		return NewNationalGridProjector()
	}
	return NewLocalProjector(bound.Center())
}

// Forward projects a layer point to meters.
func (p *Projector) Forward(pt orb.Point) orb.Point { return p.fwd(pt) }

// Inverse maps a projected point back to the layer CRS.
func (p *Projector) Inverse(pt orb.Point) orb.Point { return p.inv(pt) }

// Project returns a projected copy of g. The input is not modified.
func (p *Projector) Project(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), p.Forward)
}

// Unproject returns a copy of g mapped back to the layer CRS.
func (p *Projector) Unproject(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), p.Inverse)
}
