package enrich

import (
	"github.com/sells-group/landscore/internal/geometry"
	"github.com/sells-group/landscore/internal/layer"
)

// AddIDAndArea sets a sequential "id" and the planar "area" in square
// meters on every feature. Geographic layers are measured on the National
// Grid inside Great Britain and in a local projection elsewhere; geometries
// are left unchanged.
func AddIDAndArea(l *layer.Layer) {
	proj := geometry.ProjectorFor(l.CRS, l.Bound())
	for i, f := range l.Features {
		f.Properties["id"] = i
		if f.Geometry == nil {
			f.Properties["area"] = 0.0
			continue
		}
		_, area := geometry.CentroidArea(proj.Project(f.Geometry))
		f.Properties["area"] = area
	}
}
