package service

import "NiftyEdge/internal/domain/models"

// ThresholdMode selects how body% cut points are produced for a batch run.
type ThresholdMode string

const (
	// ThresholdRolling uses a trailing window of prior observations only.
	ThresholdRolling ThresholdMode = "rolling"
	// ThresholdFrozen uses one snapshot for every position.
	ThresholdFrozen ThresholdMode = "frozen"
)

// ThresholdEstimator returns the cut points that apply at position i of a series.
// Snapshot is the single pair persisted with the run's tables for the live classifier.
type ThresholdEstimator interface {
	At(i int) models.Thresholds
	Mode() ThresholdMode
	Snapshot() models.Thresholds
}
