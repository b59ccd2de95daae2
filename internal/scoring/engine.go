package scoring

import (
	"fmt"

	"github.com/sells-group/landscore/internal/geometry"
	"github.com/sells-group/landscore/internal/model"
)

// Default walking parameters: a 15 minute walk at 80 meters per minute.
const (
	DefaultWalkingMinutes  = 15.0
	DefaultMetersPerMinute = 80.0
)

// Options configures the buffer around each parcel.
type Options struct {
	WalkingMinutes  float64
	MetersPerMinute float64
	// Segments is the number of vertices in the buffer circle.
	Segments int
}

// DefaultOptions returns the default walking buffer.
func DefaultOptions() Options {
	return Options{
		WalkingMinutes:  DefaultWalkingMinutes,
		MetersPerMinute: DefaultMetersPerMinute,
		Segments:        geometry.DefaultSegments,
	}
}

// Radius returns the buffer radius in meters.
func (o Options) Radius() float64 {
	return o.WalkingMinutes * o.MetersPerMinute
}

// Engine scores parcels against an Index. It holds no mutable state.
type Engine struct {
	scheme *Scheme
	opts   Options
}

// NewEngine returns an engine for the given scheme. A nil scheme uses
// DefaultScheme and zero options fall back to the defaults.
func NewEngine(scheme *Scheme, opts Options) *Engine {
	if scheme == nil {
		scheme = DefaultScheme()
	}
	def := DefaultOptions()
	if opts.WalkingMinutes <= 0 {
		opts.WalkingMinutes = def.WalkingMinutes
	}
	if opts.MetersPerMinute <= 0 {
		opts.MetersPerMinute = def.MetersPerMinute
	}
	if opts.Segments <= 0 {
		opts.Segments = def.Segments
	}
	return &Engine{scheme: scheme, opts: opts}
}

// Scheme returns the engine's scheme.
func (e *Engine) Scheme() *Scheme { return e.scheme }

// Options returns the engine's buffer options.
func (e *Engine) Options() Options { return e.opts }

// Score computes the score of one parcel. The parcel geometry is projected
// with the index's projector; the parcel itself is not modified. The
// returned ID is zero and is assigned by the caller.
func (e *Engine) Score(p model.Parcel, ix *Index) model.Score {
	if p.Geometry == nil {
		return model.Score{}
	}
	projected := ix.Projector().Project(p.Geometry)
	centroid, area := geometry.CentroidArea(projected)
	buffer := geometry.Prepare(geometry.Circle(centroid, e.opts.Radius(), e.opts.Segments))

	hits := ix.Intersecting(buffer)
	zones := make([]*model.Zone, len(hits))
	for i, h := range hits {
		zones[i] = ix.Zone(h)
	}

	s := e.Aggregate(zones, ix.HasField)
	s.Area = int64(area)
	return s
}

// Aggregate combines the indicator values of the intersecting zones into a
// score. hasField reports whether a property exists anywhere in the
// reference layer; indicators whose normalized field exists nowhere are
// skipped entirely. A nil hasField treats every indicator as present.
func (e *Engine) Aggregate(zones []*model.Zone, hasField func(string) bool) model.Score {
	if len(zones) == 0 {
		return model.Score{}
	}
	if hasField == nil {
		hasField = func(string) bool { return true }
	}

	s := model.Score{
		ZoneCount:    len(zones),
		Indicators:   make(map[string]model.IndicatorScore),
		Categories:   make(map[string]float64),
		DominantZone: e.dominantZone(zones),
	}

	var total float64
	var n int
	for _, cat := range e.scheme.spec.Categories {
		var catTotal float64
		var catN int
		for _, ind := range cat.Indicators {
			normKey := e.scheme.NormKey(ind)
			if !hasField(normKey) {
				continue
			}
			var is model.IndicatorScore
			if hasField(ind) {
				is.Raw = mean(zones, ind)
			}
			is.Norm = mean(zones, normKey)
			if is.Norm.Valid {
				v := is.Norm.Value
				if e.scheme.IsNegative(ind) {
					v = 1 - v
				}
				is.Score = model.Some(v)
				catTotal += v
				catN++
			}
			if is.Raw.Valid || is.Norm.Valid {
				s.Indicators[ind] = is
			}
		}
		if catN > 0 {
			s.Categories[cat.Heading] = catTotal / float64(catN)
			total += catTotal
			n += catN
		}
	}
	if n > 0 {
		s.OverallScore = total / float64(n)
	}
	return s
}

// mean averages the named value over zones, ignoring zones where it is
// absent.
func mean(zones []*model.Zone, name string) model.Num {
	var sum float64
	var n int
	for _, z := range zones {
		if v := z.Indicator(name); v.Valid {
			sum += v.Value
			n++
		}
	}
	if n == 0 {
		return model.None()
	}
	return model.Some(sum / float64(n))
}

// dominantZone returns the most common zone key value. Ties go to the value
// seen first.
func (e *Engine) dominantZone(zones []*model.Zone) string {
	key := e.scheme.ZoneKey()
	if key == "" {
		return ""
	}
	counts := make(map[string]int)
	var order []string
	for _, z := range zones {
		v, ok := zoneValue(z, key)
		if !ok {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	best, bestN := "", 0
	for _, v := range order {
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}

func zoneValue(z *model.Zone, key string) (string, bool) {
	if v, ok := z.Attributes[key]; ok && v != nil {
		s := fmt.Sprint(v)
		return s, s != ""
	}
	if v := z.Indicator(key); v.Valid {
		return fmt.Sprint(v.Value), true
	}
	return "", false
}
