package geometry

import (
	"errors"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/rotisserie/eris"
	"github.com/wroge/wgs84"
)

// BritishNationalGrid is the metric CRS used for geographic layers inside
// Great Britain.
const BritishNationalGrid = "EPSG:27700"

// ErrUnsupportedCRS is returned for a CRS no transform is known for.
var ErrUnsupportedCRS = errors.New("unsupported CRS")

// gbExtent bounds the area where the National Grid is used for metric math.
var gbExtent = orb.Bound{Min: orb.Point{-9, 49}, Max: orb.Point{2.5, 61.5}}

// EPSGCode resolves a CRS name to its EPSG code. It understands "EPSG:n",
// OGC URNs, CRS84 and the WKT written to shapefile .prj files for the
// National Grid and Web Mercator. An empty CRS is WGS84.
func EPSGCode(crs string) (int, bool) {
	if IsGeographic(crs) {
		return 4326, true
	}
	s := strings.TrimSpace(crs)
	upper := strings.ToUpper(s)

	if strings.HasPrefix(upper, "PROJCS") || strings.HasPrefix(upper, "PROJCRS") {
		switch {
		case strings.Contains(upper, "BRITISH_NATIONAL_GRID"),
			strings.Contains(upper, "BRITISH NATIONAL GRID"):
			return 27700, true
		case strings.Contains(upper, "PSEUDO-MERCATOR"),
			strings.Contains(upper, "WEB_MERCATOR"):
			return 3857, true
		}
		return 0, false
	}

	i := strings.LastIndex(upper, ":")
	if i < 0 || !strings.Contains(upper, "EPSG") {
		return 0, false
	}
	code, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return 0, false
	}
	return code, true
}

// SameCRS reports whether a and b name the same reference system.
func SameCRS(a, b string) bool {
	ca, okA := EPSGCode(a)
	cb, okB := EPSGCode(b)
	if okA && okB {
		return ca == cb
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func referenceSystem(crs string) (wgs84.CoordinateReferenceSystem, error) {
	code, ok := EPSGCode(crs)
	if !ok {
		return nil, eris.Wrapf(ErrUnsupportedCRS, "geometry: %q", crs)
	}
	switch code {
	case 4326:
		return wgs84.LonLat(), nil
	case 27700:
		return wgs84.OSGB36NationalGrid(), nil
	case 3857:
		return wgs84.WebMercator(), nil
	default:
		return nil, eris.Wrapf(ErrUnsupportedCRS, "geometry: EPSG:%d", code)
	}
}

// Transformer converts coordinates between two reference systems.
type Transformer struct {
	fn wgs84.Func
}

// NewTransformer returns a transform from one CRS to another.
func NewTransformer(from, to string) (*Transformer, error) {
	src, err := referenceSystem(from)
	if err != nil {
		return nil, err
	}
	dst, err := referenceSystem(to)
	if err != nil {
		return nil, err
	}
	return &Transformer{fn: wgs84.Transform(src, dst)}, nil
}

// Point transforms a single point.
func (t *Transformer) Point(pt orb.Point) orb.Point {
	x, y, _ := t.fn(pt.X(), pt.Y(), 0)
	return orb.Point{x, y}
}

// Geometry returns a transformed copy of g.
func (t *Transformer) Geometry(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), t.Point)
}
