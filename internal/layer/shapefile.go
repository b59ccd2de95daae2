package layer

import (
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ReadShapefile loads polygon records and their dBASE attributes. Numeric
// (N/F) columns are parsed into float64; other columns are trimmed strings.
// The CRS comes from the sibling .prj file when present.
func ReadShapefile(path string) (*Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	l := &Layer{CRS: readPrj(path)}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			skipped++
			continue
		}
		g := shapeToGeometry(poly)
		if g == nil {
			skipped++
			continue
		}

		f := geojson.NewFeature(g)
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val == "" {
				continue
			}
			switch fields[i].Fieldtype {
			case 'N', 'F':
				if n, err := strconv.ParseFloat(val, 64); err == nil {
					f.Properties[name] = n
					continue
				}
			}
			f.Properties[name] = val
		}
		l.Features = append(l.Features, f)
	}

	if skipped > 0 {
		zap.L().Debug("layer: skipped non-polygon shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return l, nil
}

// shapeToGeometry groups shapefile rings into polygons. Clockwise rings are
// outer boundaries; counter-clockwise rings are holes of the preceding outer.
func shapeToGeometry(p *shp.Polygon) orb.Geometry {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var mp orb.MultiPolygon
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{p.Points[j].X, p.Points[j].Y})
		}

		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			last := len(mp) - 1
			mp[last] = append(mp[last], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}

	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	default:
		return mp
	}
}

// readPrj maps the sibling .prj to a CRS name. Geographic WGS84 definitions
// become EPSG:4326; projected definitions are kept as raw WKT.
func readPrj(shpPath string) string {
	prjPath := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	if strings.HasSuffix(shpPath, ".SHP") {
		prjPath = strings.TrimSuffix(shpPath, ".SHP") + ".PRJ"
	}
	data, err := os.ReadFile(prjPath)
	if err != nil {
		return ""
	}
	wkt := strings.TrimSpace(string(data))
	if strings.HasPrefix(wkt, "GEOGCS") && strings.Contains(wkt, "WGS_1984") {
		return "EPSG:4326"
	}
	return wkt
}
