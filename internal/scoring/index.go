package scoring

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/sells-group/landscore/internal/geometry"
	"github.com/sells-group/landscore/internal/model"
)

// Index is an R-tree over reference zones in projected coordinates. It is
// read-only after construction and safe for concurrent queries.
type Index struct {
	zones  []model.Zone
	shapes []geometry.Shape
	fields map[string]bool
	tree   rtree.RTreeG[int]
	proj   *geometry.Projector
}

// NewIndex projects every zone with proj and indexes its bounding box.
// Zones with no polygonal geometry are kept for field discovery but never
// match a query.
func NewIndex(zones []model.Zone, proj *geometry.Projector) *Index {
	if proj == nil {
		proj = geometry.IdentityProjector()
	}
	ix := &Index{
		zones:  zones,
		shapes: make([]geometry.Shape, len(zones)),
		fields: make(map[string]bool),
		proj:   proj,
	}
	for i := range zones {
		z := &zones[i]
		for k := range z.Indicators {
			ix.fields[k] = true
		}
		for k := range z.Attributes {
			ix.fields[k] = true
		}
		for _, k := range z.Nulls {
			ix.fields[k] = true
		}
		if z.Geometry == nil {
			continue
		}
		s := geometry.Prepare(proj.Project(z.Geometry))
		ix.shapes[i] = s
		if s.Empty() {
			continue
		}
		ix.tree.Insert(
			[2]float64{s.Bound.Min.X(), s.Bound.Min.Y()},
			[2]float64{s.Bound.Max.X(), s.Bound.Max.Y()},
			i,
		)
	}
	return ix
}

// Len returns the number of indexed zones.
func (ix *Index) Len() int { return len(ix.zones) }

// Projector returns the projection the index was built with.
func (ix *Index) Projector() *geometry.Projector { return ix.proj }

// HasField reports whether any zone carries the named property, even with
// a null value.
func (ix *Index) HasField(name string) bool { return ix.fields[name] }

// Zone returns the i-th zone.
func (ix *Index) Zone(i int) *model.Zone { return &ix.zones[i] }

// Candidates returns the zones whose bounding boxes overlap b, in ascending
// zone order.
func (ix *Index) Candidates(b orb.Bound) []int {
	var out []int
	ix.tree.Search(
		[2]float64{b.Min.X(), b.Min.Y()},
		[2]float64{b.Max.X(), b.Max.Y()},
		func(_, _ [2]float64, i int) bool {
			out = append(out, i)
			return true
		},
	)
	slices.Sort(out)
	return out
}

// Intersecting returns the zones that share at least one point with s, in
// ascending zone order. The bounding-box pass only narrows candidates; every
// result passes the exact polygon test.
func (ix *Index) Intersecting(s geometry.Shape) []int {
	if s.Empty() {
		return nil
	}
	cands := ix.Candidates(s.Bound)
	out := cands[:0]
	for _, i := range cands {
		if ix.shapes[i].Intersects(s) {
			out = append(out, i)
		}
	}
	return out
}
