// Package spatialjoin assigns each data zone the attribute of the council
// area that contains it.
package spatialjoin

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"

	"github.com/sells-group/landscore/internal/geometry"
	"github.com/sells-group/landscore/internal/layer"
)

// Options names the attribute copied from councils to zones.
type Options struct {
	// Attribute is read from councils and written to zones. Default: local_auth.
	Attribute string
	// PreserveAs receives a zone's pre-existing Attribute value. Default:
	// Attribute + "_original".
	PreserveAs string
}

// Result counts how each zone was assigned.
type Result struct {
	Within     int
	Nearest    int
	Unassigned int
}

// Assign sets opts.Attribute on every zone feature. A zone lying entirely
// inside a council takes that council's value (the lowest-index council if
// several qualify); any other zone takes the value of the council nearest
// to its centroid. Councils in another CRS are reprojected to the zone CRS
// first. Distances are measured in a metric projection.
func Assign(zones, councils *layer.Layer, opts Options) (Result, error) {
	if opts.Attribute == "" {
		opts.Attribute = "local_auth"
	}
	if opts.PreserveAs == "" {
		opts.PreserveAs = opts.Attribute + "_original"
	}
	if err := layer.ValidateFields(councils, "council layer", []string{opts.Attribute}); err != nil {
		return Result{}, err
	}
	log := zap.L().With(zap.String("component", "spatialjoin"))
	aligned, err := layer.Reproject(councils, zones.CRS)
	if err != nil {
		return Result{}, eris.Wrap(err, "spatialjoin: align councils with zones")
	}
	if aligned != councils {
		log.Info("councils reprojected", zap.String("from", councils.CRS), zap.String("to", zones.CRS))
		councils = aligned
	}

	proj := geometry.ProjectorFor(zones.CRS, zones.Bound().Union(councils.Bound()))
	ix := newCouncilIndex(councils, proj)

	var res Result
	for _, f := range zones.Features {
		if v, ok := f.Properties[opts.Attribute]; ok {
			f.Properties[opts.PreserveAs] = v
		}
		f.Properties[opts.Attribute] = nil
		if f.Geometry == nil {
			res.Unassigned++
			continue
		}

		projected := proj.Project(f.Geometry)
		if ci, ok := ix.within(geometry.Prepare(projected)); ok {
			f.Properties[opts.Attribute] = councils.Features[ci].Properties[opts.Attribute]
			res.Within++
			continue
		}

		centroid, _ := geometry.CentroidArea(projected)
		if ci, ok := ix.nearest(centroid); ok {
			f.Properties[opts.Attribute] = councils.Features[ci].Properties[opts.Attribute]
			res.Nearest++
			continue
		}
		res.Unassigned++
	}

	log.Info("zones assigned",
		zap.Int("zones", len(zones.Features)),
		zap.Int("within", res.Within),
		zap.Int("nearest", res.Nearest),
		zap.Int("unassigned", res.Unassigned),
	)
	return res, nil
}

type councilIndex struct {
	geoms  []orb.Geometry
	shapes []geometry.Shape
	tree   rtree.RTreeG[int]
}

func newCouncilIndex(councils *layer.Layer, proj *geometry.Projector) *councilIndex {
	ix := &councilIndex{
		geoms:  make([]orb.Geometry, len(councils.Features)),
		shapes: make([]geometry.Shape, len(councils.Features)),
	}
	for i, f := range councils.Features {
		if f.Geometry == nil {
			continue
		}
		g := proj.Project(f.Geometry)
		s := geometry.Prepare(g)
		if s.Empty() {
			continue
		}
		ix.geoms[i] = g
		ix.shapes[i] = s
		ix.tree.Insert(
			[2]float64{s.Bound.Min.X(), s.Bound.Min.Y()},
			[2]float64{s.Bound.Max.X(), s.Bound.Max.Y()},
			i,
		)
	}
	return ix
}

func (ix *councilIndex) within(s geometry.Shape) (int, bool) {
	if s.Empty() {
		return 0, false
	}
	var cands []int
	ix.tree.Search(
		[2]float64{s.Bound.Min.X(), s.Bound.Min.Y()},
		[2]float64{s.Bound.Max.X(), s.Bound.Max.Y()},
		func(_, _ [2]float64, i int) bool {
			cands = append(cands, i)
			return true
		},
	)
	slices.Sort(cands)
	for _, i := range cands {
		if s.Within(ix.shapes[i]) {
			return i, true
		}
	}
	return 0, false
}

func (ix *councilIndex) nearest(pt orb.Point) (int, bool) {
	best, bestD := -1, math.Inf(1)
	for i, g := range ix.geoms {
		if g == nil {
			continue
		}
		if d := geometry.DistanceTo(g, pt); d < bestD {
			best, bestD = i, d
		}
	}
	return best, best >= 0
}
