package thresholds

import (
	"fmt"
	"math"
	"sort"

	"NiftyEdge/internal/domain/models"
	"NiftyEdge/internal/domain/service"
)

const (
	DefaultWindow     = 20
	DefaultMinPeriods = 10
)

// Rolling holds precomputed causal thresholds: position i only sees i-window..i-1.
type Rolling struct {
	values []models.Thresholds
	global models.Thresholds
}

// NewRolling precomputes thresholds for every position of bodyPct. NaN marks undefined.
func NewRolling(bodyPct []float64, window, minPeriods int) (*Rolling, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d", window)
	}
	if minPeriods <= 0 || minPeriods > window {
		return nil, fmt.Errorf("min periods must be in [1, %d], got %d", window, minPeriods)
	}

	out := make([]models.Thresholds, len(bodyPct))
	buf := make([]float64, 0, window)
	for i := range bodyPct {
		start := i - window
		if start < 0 {
			start = 0
		}
		buf = buf[:0]
		for _, v := range bodyPct[start:i] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) < minPeriods {
			continue
		}
		sort.Float64s(buf)
		out[i] = models.Thresholds{
			Body70: models.Float(quantileSorted(buf, Upper)),
			Body30: models.Float(quantileSorted(buf, Lower)),
		}
	}
	return &Rolling{values: out, global: Global(bodyPct)}, nil
}

func (r *Rolling) At(i int) models.Thresholds {
	if i < 0 || i >= len(r.values) {
		return models.Thresholds{}
	}
	return r.values[i]
}

func (r *Rolling) Mode() service.ThresholdMode { return service.ThresholdRolling }

// Snapshot is the pair over the whole series; live observations have no trailing window.
func (r *Rolling) Snapshot() models.Thresholds { return r.global }

var _ service.ThresholdEstimator = (*Rolling)(nil)
