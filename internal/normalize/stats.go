package normalize

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const histogramBins = 10

// FieldStats summarizes the numeric values of one property.
type FieldStats struct {
	Field     string  `json:"field"`
	Count     int     `json:"count"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Median    float64 `json:"median"`
	QLow      float64 `json:"q_low"`
	QHigh     float64 `json:"q_high"`
	Histogram []int   `json:"histogram"`

	sorted []float64
}

// NewFieldStats computes statistics over values. The standard deviation is
// the population form. Quantiles use linear interpolation between closest
// ranks; with a single value they collapse to min and max.
func NewFieldStats(field string, values []float64, qLow, qHigh float64) *FieldStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	s := &FieldStats{
		Field:  field,
		Count:  len(sorted),
		sorted: sorted,
	}
	if len(sorted) == 0 {
		return s
	}

	s.Min = floats.Min(sorted)
	s.Max = floats.Max(sorted)
	s.Mean, s.Std = stat.PopMeanStdDev(sorted, nil)
	s.Median = quantile(sorted, 0.5)
	if len(sorted) > 1 {
		s.QLow = quantile(sorted, qLow)
		s.QHigh = quantile(sorted, qHigh)
	} else {
		s.QLow, s.QHigh = s.Min, s.Max
	}
	s.Histogram = histogram(sorted, s.Min, s.Max)
	return s
}

// Rank returns the position of the first occurrence of v in the sorted
// values, or 0 when v is not present.
func (s *FieldStats) Rank(v float64) int {
	i := sort.SearchFloat64s(s.sorted, v)
	if i < len(s.sorted) && s.sorted[i] == v {
		return i
	}
	return 0
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * q
	lo := int(math.Floor(h))
	if lo < 0 {
		return sorted[0]
	}
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// histogram counts sorted values into equal-width bins over [min, max], with
// the last bin closed. A zero-width range is widened by 0.5 on each side.
func histogram(sorted []float64, lo, hi float64) []int {
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	dividers := floats.Span(make([]float64, histogramBins+1), lo, hi)
	dividers[histogramBins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(make([]float64, histogramBins), dividers, sorted, nil)
	out := make([]int, len(counts))
	for i, c := range counts {
		out[i] = int(c)
	}
	return out
}
