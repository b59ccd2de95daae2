package model

import (
	"github.com/paulmach/orb"
)

// Parcel is a candidate land polygon under evaluation.
type Parcel struct {
	// Index is the parcel's position in the input ordering.
	Index int
	// SourceID is the upstream identifier (e.g. the OSM way id), if any.
	SourceID any
	// Geometry is an orb.Polygon or orb.MultiPolygon in the input CRS.
	Geometry   orb.Geometry
	Properties map[string]any
}

// Zone is a reference reporting area carrying named indicator values.
type Zone struct {
	Geometry   orb.Geometry
	Indicators map[string]Num
	// Attributes holds the non-numeric properties (codes, names).
	Attributes map[string]any
	// Nulls names the properties present with a null value.
	Nulls []string
}

// Indicator returns the named indicator value, absent when not present.
func (z *Zone) Indicator(name string) Num {
	if z == nil || z.Indicators == nil {
		return None()
	}
	return z.Indicators[name]
}

// IndicatorScore holds the averaged raw and normalized values of one
// indicator over the zones intersecting a parcel buffer.
type IndicatorScore struct {
	Raw  Num `json:"raw"`
	Norm Num `json:"norm"`
	// Score is Norm, or 1-Norm for negative-impact indicators. Valid only when
	// Norm is valid.
	Score Num `json:"score"`
}

// Score is the immutable result of scoring one parcel.
type Score struct {
	ID           int                       `json:"id"`
	Area         int64                     `json:"area"`
	OverallScore float64                   `json:"overallScore"`
	ZoneCount    int                       `json:"datazonesCount"`
	Indicators   map[string]IndicatorScore `json:"indicators,omitempty"`
	Categories   map[string]float64        `json:"categories,omitempty"`
	DominantZone string                    `json:"dominantZone,omitempty"`
}

// Scored pairs a parcel with its score.
type Scored struct {
	Parcel Parcel
	Score  Score
}

// Properties flattens the score into output feature properties. Indicator
// raw means keep the indicator name, normalized means carry normPrefix, and
// categories are keyed by their heading. Absent values are omitted.
func (s Score) Properties(normPrefix, zoneKey string) map[string]any {
	props := map[string]any{
		"id":             s.ID,
		"area":           s.Area,
		"overallScore":   s.OverallScore,
		"datazonesCount": s.ZoneCount,
	}
	for name, ind := range s.Indicators {
		if ind.Raw.Valid {
			props[name] = ind.Raw.Value
		}
		if ind.Norm.Valid {
			props[normPrefix+name] = ind.Norm.Value
		}
	}
	for heading, v := range s.Categories {
		props[heading] = v
	}
	if s.DominantZone != "" && zoneKey != "" {
		props[zoneKey] = s.DominantZone
	}
	return props
}
