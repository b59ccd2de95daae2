// Package normalize rescales numeric feature properties into [0, 1] using
// one of four interchangeable strategies and writes the results back as
// prefixed properties.
package normalize

import (
	"math"
	"sort"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landscore/internal/model"
)

// Method names a normalization strategy.
type Method string

const (
	// MinMax scales linearly between the field minimum and maximum.
	MinMax Method = "minmax"
	// Robust scales linearly across a quantile window and clips to [0, 1].
	Robust Method = "robust"
	// ZScore maps the standard score through a sigmoid.
	ZScore Method = "zscore"
	// Quantile uses the value's rank in the sorted field values.
	Quantile Method = "quantile"
)

// ParseMethod validates a strategy name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MinMax, Robust, ZScore, Quantile:
		return m, nil
	default:
		return "", eris.Errorf("normalize: unknown method %q (valid: minmax, robust, zscore, quantile)", s)
	}
}

// Options configures a normalization pass.
type Options struct {
	Method       Method
	QuantileLow  float64
	QuantileHigh float64
	Prefix       string
	Exclude      []string
}

// DefaultOptions returns robust scaling over the 10th-90th percentile window.
func DefaultOptions() Options {
	return Options{
		Method:       Robust,
		QuantileLow:  0.1,
		QuantileHigh: 0.9,
		Prefix:       "norm",
	}
}

// Summary describes a completed normalization pass.
type Summary struct {
	Method Method        `json:"method"`
	Fields []*FieldStats `json:"fields"`
}

// Value normalizes v against the field statistics with the given method.
func Value(m Method, s *FieldStats, v float64) float64 {
	switch m {
	case MinMax:
		if s.Max > s.Min {
			return (v - s.Min) / (s.Max - s.Min)
		}
		return 0.5
	case Robust:
		width := s.QHigh - s.QLow
		if width > 0 {
			return math.Max(0, math.Min(1, (v-s.QLow)/width))
		}
		return 0.5
	case ZScore:
		if s.Std > 0 {
			z := (v - s.Mean) / s.Std
			return 1 / (1 + math.Exp(-z))
		}
		return 0.5
	case Quantile:
		return float64(s.Rank(v)) / float64(max(1, s.Count-1))
	default:
		return math.NaN()
	}
}

// Collect gathers per-field statistics over every numeric property not in
// exclude. Non-numeric and missing values are skipped for that field only.
func Collect(features []*geojson.Feature, exclude []string, qLow, qHigh float64) map[string]*FieldStats {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}

	values := make(map[string][]float64)
	for _, f := range features {
		if f == nil {
			continue
		}
		for k, v := range f.Properties {
			if skip[k] {
				continue
			}
			if n := model.ParseNum(v); n.Valid {
				values[k] = append(values[k], n.Value)
			}
		}
	}

	stats := make(map[string]*FieldStats, len(values))
	for k, vs := range values {
		stats[k] = NewFieldStats(k, vs, qLow, qHigh)
	}
	return stats
}

// Apply normalizes every numeric field of features in place, adding
// "<prefix>_<field>" properties.
func Apply(features []*geojson.Feature, opts Options) (*Summary, error) {
	method, err := ParseMethod(string(opts.Method))
	if err != nil {
		return nil, err
	}
	if opts.Prefix == "" {
		opts.Prefix = "norm"
	}
	if opts.QuantileLow < 0 || opts.QuantileHigh > 1 || opts.QuantileLow > opts.QuantileHigh {
		return nil, eris.Errorf("normalize: invalid quantile range (%g, %g)", opts.QuantileLow, opts.QuantileHigh)
	}

	stats := Collect(features, opts.Exclude, opts.QuantileLow, opts.QuantileHigh)

	for _, f := range features {
		if f == nil {
			continue
		}
		for k, s := range stats {
			n := model.ParseNum(f.Properties[k])
			if !n.Valid {
				continue
			}
			f.Properties[opts.Prefix+"_"+k] = Value(method, s, n.Value)
		}
	}

	summary := &Summary{Method: method}
	for _, s := range stats {
		summary.Fields = append(summary.Fields, s)
	}
	sort.Slice(summary.Fields, func(i, j int) bool {
		return summary.Fields[i].Field < summary.Fields[j].Field
	})

	log := zap.L().With(zap.String("component", "normalize"))
	log.Info("normalized features",
		zap.String("method", string(method)),
		zap.Int("features", len(features)),
		zap.Int("fields", len(summary.Fields)),
		zap.Int("excluded", len(opts.Exclude)),
	)
	for _, s := range summary.Fields[:min(3, len(summary.Fields))] {
		log.Info("field distribution",
			zap.String("field", s.Field),
			zap.Float64("min", s.Min),
			zap.Float64("max", s.Max),
			zap.Float64("mean", s.Mean),
			zap.Float64("median", s.Median),
			zap.Float64("q_low", s.QLow),
			zap.Float64("q_high", s.QHigh),
			zap.Ints("histogram", s.Histogram),
		)
	}

	return summary, nil
}
