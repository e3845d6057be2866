package thresholds

import (
	"fmt"

	"NiftyEdge/internal/domain/models"
	"NiftyEdge/internal/domain/service"
)

// Frozen returns the same snapshot at every position.
type Frozen struct {
	snapshot models.Thresholds
}

func NewFrozen(snapshot models.Thresholds) *Frozen {
	return &Frozen{snapshot: snapshot}
}

func (f *Frozen) At(int) models.Thresholds { return f.snapshot }

func (f *Frozen) Mode() service.ThresholdMode { return service.ThresholdFrozen }

func (f *Frozen) Snapshot() models.Thresholds { return f.snapshot }

// Options configure New.
type Options struct {
	Mode       service.ThresholdMode
	Window     int
	MinPeriods int
	// Snapshot is used by frozen mode; nil means the series' own global pair.
	Snapshot *models.Thresholds
}

// New selects the estimator for a batch run.
func New(bodyPct []float64, opts Options) (service.ThresholdEstimator, error) {
	switch opts.Mode {
	case service.ThresholdRolling, "":
		window, minPeriods := opts.Window, opts.MinPeriods
		if window == 0 {
			window = DefaultWindow
		}
		if minPeriods == 0 {
			minPeriods = DefaultMinPeriods
		}
		return NewRolling(bodyPct, window, minPeriods)
	case service.ThresholdFrozen:
		if opts.Snapshot != nil {
			return NewFrozen(*opts.Snapshot), nil
		}
		return NewFrozen(Global(bodyPct)), nil
	default:
		return nil, fmt.Errorf("unknown threshold mode %q", opts.Mode)
	}
}

var _ service.ThresholdEstimator = (*Frozen)(nil)
