package scoring

import (
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/landscore/internal/layer"
	"github.com/sells-group/landscore/internal/model"
)

// Summary is the aggregate of overall scores over a run.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
}

// Summarize aggregates overall scores. An empty input yields a zero Summary.
func Summarize(scores []model.Score) Summary {
	vals := make([]float64, len(scores))
	for i, s := range scores {
		vals[i] = s.OverallScore
	}
	return SummarizeValues(vals)
}

// SummarizeLayer aggregates the overallScore property of a scored layer.
// Features without a numeric overallScore are ignored.
func SummarizeLayer(l *layer.Layer) Summary {
	vals := make([]float64, 0, len(l.Features))
	for _, f := range l.Features {
		if v := model.ParseNum(f.Properties["overallScore"]); v.Valid {
			vals = append(vals, v.Value)
		}
	}
	return SummarizeValues(vals)
}

// SummarizeValues aggregates raw overall scores.
func SummarizeValues(vals []float64) Summary {
	if len(vals) == 0 {
		return Summary{}
	}
	return Summary{
		Count: len(vals),
		Min:   floats.Min(vals),
		Mean:  floats.Sum(vals) / float64(len(vals)),
		Max:   floats.Max(vals),
	}
}

// Recompute derives the overall score from the per-indicator normalized
// means written to an output feature. ok is false when no indicator is
// present, in which case the overall score must be zero.
func (s *Scheme) Recompute(props map[string]any) (overall float64, ok bool) {
	var total float64
	var n int
	for _, ind := range s.indicators {
		v := model.ParseNum(props[s.NormKey(ind)])
		if !v.Valid {
			continue
		}
		if s.IsNegative(ind) {
			total += 1 - v.Value
		} else {
			total += v.Value
		}
		n++
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}
