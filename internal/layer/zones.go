package layer

import (
	"fmt"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/sells-group/landscore/internal/model"
)

// MissingFieldError reports a required property absent from every feature.
type MissingFieldError struct {
	Field string
	Layer string
}

func (e *MissingFieldError) Error() string {
	if e.Layer == "" {
		return fmt.Sprintf("required field %q not found", e.Field)
	}
	return fmt.Sprintf("required field %q not found in %s", e.Field, e.Layer)
}

// ValidateFields checks that each required field appears on at least one
// feature. The first missing field is returned as a *MissingFieldError.
func ValidateFields(l *Layer, name string, required []string) error {
	present := make(map[string]bool)
	for _, f := range l.Features {
		for k := range f.Properties {
			present[k] = true
		}
	}
	for _, field := range required {
		if !present[field] {
			return &MissingFieldError{Field: field, Layer: name}
		}
	}
	return nil
}

// LoadZones reads a reference layer, validates required fields, and converts
// its polygon features into zones.
func LoadZones(path string, required []string) (*Layer, []model.Zone, error) {
	l, err := Read(path)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateFields(l, path, required); err != nil {
		return nil, nil, err
	}
	zones := Zones(l)
	zap.L().Info("layer: reference zones loaded",
		zap.String("path", path),
		zap.Int("zones", len(zones)),
		zap.Int("skipped", len(l.Features)-len(zones)),
	)
	return l, zones, nil
}

// Zones converts polygonal features into reference zones. Numeric
// properties become indicators, null ones are recorded by name, and
// everything else is kept as attributes.
// Features without polygonal geometry are skipped.
func Zones(l *Layer) []model.Zone {
	zones := make([]model.Zone, 0, len(l.Features))
	for _, f := range l.Features {
		if f == nil || !isPolygonal(f.Geometry) {
			continue
		}
		z := model.Zone{
			Geometry:   f.Geometry,
			Indicators: make(map[string]model.Num),
			Attributes: make(map[string]any),
		}
		for k, v := range f.Properties {
			if n := model.ParseNum(v); n.Valid {
				z.Indicators[k] = n
				continue
			}
			if v == nil {
				z.Nulls = append(z.Nulls, k)
				continue
			}
			z.Attributes[k] = v
		}
		zones = append(zones, z)
	}
	return zones
}

// Parcels converts polygonal features into parcels in input order. When
// keepProperties is false only the geometry is retained.
func Parcels(l *Layer, keepProperties bool) []model.Parcel {
	parcels := make([]model.Parcel, 0, len(l.Features))
	for _, f := range l.Features {
		if f == nil || !isPolygonal(f.Geometry) {
			continue
		}
		p := model.Parcel{
			Index:      len(parcels),
			SourceID:   f.ID,
			Geometry:   f.Geometry,
			Properties: map[string]any{},
		}
		if keepProperties {
			for k, v := range f.Properties {
				p.Properties[k] = v
			}
		}
		parcels = append(parcels, p)
	}
	return parcels
}

func isPolygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	default:
		return false
	}
}
