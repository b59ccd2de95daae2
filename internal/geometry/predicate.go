package geometry

import (
	"github.com/paulmach/orb"
	"github.com/tidwall/geojson/geometry"
)

// Shape is a polygonal geometry prepared for repeated exact predicates.
type Shape struct {
	Bound orb.Bound
	polys []*geometry.Poly
}

// Prepare converts a Polygon or MultiPolygon into a Shape. Other geometry
// types produce an empty Shape that intersects nothing.
func Prepare(g orb.Geometry) Shape {
	s := Shape{}
	if g == nil {
		return s
	}
	s.Bound = g.Bound()
	switch t := g.(type) {
	case orb.Polygon:
		if p := toPoly(t); p != nil {
			s.polys = append(s.polys, p)
		}
	case orb.MultiPolygon:
		for _, poly := range t {
			if p := toPoly(poly); p != nil {
				s.polys = append(s.polys, p)
			}
		}
	}
	return s
}

// Empty reports whether the shape has no usable polygon parts.
func (s Shape) Empty() bool {
	return len(s.polys) == 0
}

// Intersects reports whether any part of s shares a point with any part of o.
func (s Shape) Intersects(o Shape) bool {
	if s.Empty() || o.Empty() || !s.Bound.Intersects(o.Bound) {
		return false
	}
	for _, a := range s.polys {
		for _, b := range o.polys {
			if a.IntersectsPoly(b) {
				return true
			}
		}
	}
	return false
}

// Within reports whether every part of s lies inside some part of o.
func (s Shape) Within(o Shape) bool {
	if s.Empty() || o.Empty() {
		return false
	}
	for _, a := range s.polys {
		inside := false
		for _, b := range o.polys {
			if b.ContainsPoly(a) {
				inside = true
				break
			}
		}
		if !inside {
			return false
		}
	}
	return true
}

// Intersects is a convenience for one-off checks between two geometries.
func Intersects(a, b orb.Geometry) bool {
	return Prepare(a).Intersects(Prepare(b))
}

func toPoly(p orb.Polygon) *geometry.Poly {
	if len(p) == 0 || len(p[0]) < 3 {
		return nil
	}
	exterior := toPoints(p[0])
	var holes [][]geometry.Point
	for _, h := range p[1:] {
		if len(h) < 3 {
			continue
		}
		holes = append(holes, toPoints(h))
	}
	return geometry.NewPoly(exterior, holes, geometry.DefaultIndexOptions)
}

func toPoints(r orb.Ring) []geometry.Point {
	pts := make([]geometry.Point, len(r))
	for i, p := range r {
		pts[i] = geometry.Point{X: p[0], Y: p[1]}
	}
	return pts
}
