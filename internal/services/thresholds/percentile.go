package thresholds

import (
	"math"
	"sort"

	"NiftyEdge/internal/domain/models"
)

const (
	// Upper and Lower are the body% quantiles used by the candle classifier.
	Upper = 0.7
	Lower = 0.3
)

// Percentile returns the q-quantile (0..1) of the non-NaN values using linear
// interpolation between closest ranks. ok is false when no value is defined.
func Percentile(values []float64, q float64) (v float64, ok bool) {
	clean := make([]float64, 0, len(values))
	for _, x := range values {
		if !math.IsNaN(x) {
			clean = append(clean, x)
		}
	}
	if len(clean) == 0 {
		return 0, false
	}
	sort.Float64s(clean)
	return quantileSorted(clean, q), true
}

func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Global computes the frozen snapshot over every defined body% value.
func Global(bodyPct []float64) models.Thresholds {
	var t models.Thresholds
	if v, ok := Percentile(bodyPct, Upper); ok {
		t.Body70 = models.Float(v)
	}
	if v, ok := Percentile(bodyPct, Lower); ok {
		t.Body30 = models.Float(v)
	}
	return t
}
