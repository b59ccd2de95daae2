// Package layer reads and writes polygon feature collections (GeoJSON and
// ESRI shapefiles) and turns them into parcels and reference zones.
package layer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landscore/internal/geometry"
)

// ErrMissingFile is returned when an input layer does not exist.
var ErrMissingFile = errors.New("input file not found")

// Layer is a feature collection with its declared coordinate reference
// system. An empty CRS means none was declared.
type Layer struct {
	CRS      string
	Features []*geojson.Feature
}

// Bound returns the combined bounds of all feature geometries.
func (l *Layer) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, f := range l.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if first {
			b = fb
			first = false
			continue
		}
		b = b.Union(fb)
	}
	return b
}

// Reproject returns l in the target CRS. A layer already in that CRS is
// returned as is; otherwise features are copied with transformed geometry.
// An undeclared source CRS is WGS84.
func Reproject(l *Layer, to string) (*Layer, error) {
	if geometry.SameCRS(l.CRS, to) {
		return l, nil
	}
	t, err := geometry.NewTransformer(l.CRS, to)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: reproject %q to %q", l.CRS, to)
	}
	out := &Layer{CRS: to, Features: make([]*geojson.Feature, len(l.Features))}
	for i, f := range l.Features {
		nf := geojson.NewFeature(t.Geometry(f.Geometry))
		nf.ID = f.ID
		nf.Properties = f.Properties.Clone()
		out.Features[i] = nf
	}
	return out, nil
}

// Read loads a layer from a .geojson/.json file or a .shp shapefile.
func Read(path string) (*Layer, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrMissingFile, "layer: %s", path)
		}
		return nil, eris.Wrapf(err, "layer: stat %s", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return ReadShapefile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: read %s", path)
	}
	l, err := Decode(data)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: decode %s", path)
	}

	zap.L().Debug("layer: loaded",
		zap.String("path", path),
		zap.Int("features", len(l.Features)),
		zap.String("crs", l.CRS),
	)
	return l, nil
}

// Decode parses a GeoJSON FeatureCollection, extracting a named "crs" member
// if present.
func Decode(data []byte) (*Layer, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrap(err, "layer: unmarshal feature collection")
	}
	for _, f := range fc.Features {
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
	}
	l := &Layer{Features: fc.Features}
	if raw, ok := fc.ExtraMembers["crs"]; ok {
		l.CRS = crsName(raw)
	}
	return l, nil
}

// Encode renders the layer as an indented GeoJSON FeatureCollection. A
// non-empty CRS is attached verbatim as a named "crs" member.
func Encode(l *Layer) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	fc.Features = l.Features
	if fc.Features == nil {
		fc.Features = []*geojson.Feature{}
	}
	if l.CRS != "" {
		fc.ExtraMembers = geojson.Properties{
			"crs": map[string]any{
				"type":       "name",
				"properties": map[string]any{"name": l.CRS},
			},
		}
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "layer: marshal feature collection")
	}
	return data, nil
}

// Write encodes the layer to path. The file is written to a temporary
// sibling and renamed into place so a failed write never leaves partial
// output behind.
func Write(path string, l *Layer) error {
	data, err := Encode(l)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "layer: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "layer: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "layer: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "layer: close %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "layer: rename into %s", path)
	}
	return nil
}

// crsName pulls properties.name out of a {"type":"name"} CRS object.
func crsName(raw any) string {
	m, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := props["name"].(string)
	return name
}
