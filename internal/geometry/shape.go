package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultSegments matches the 16-segments-per-quadrant resolution used by
// GEOS buffers.
const DefaultSegments = 64

// Circle returns a closed polygon approximating a circle of radius around
// center. segments <= 0 uses DefaultSegments.
func Circle(center orb.Point, radius float64, segments int) orb.Polygon {
	if segments <= 0 {
		segments = DefaultSegments
	}
	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		ring = append(ring, orb.Point{
			center.X() + radius*math.Cos(theta),
			center.Y() + radius*math.Sin(theta),
		})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// CentroidArea returns the planar centroid and the unsigned area of g.
func CentroidArea(g orb.Geometry) (orb.Point, float64) {
	c, a := planar.CentroidArea(g)
	return c, math.Abs(a)
}

// Contains reports whether the polygonal geometry g contains pt.
func Contains(g orb.Geometry, pt orb.Point) bool {
	switch t := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(t, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(t, pt)
	case orb.Ring:
		return planar.RingContains(t, pt)
	default:
		return false
	}
}

// DistanceTo returns the planar distance from pt to g: zero when g contains
// pt, otherwise the distance to its boundary.
func DistanceTo(g orb.Geometry, pt orb.Point) float64 {
	if Contains(g, pt) {
		return 0
	}
	return planar.DistanceFrom(g, pt)
}
