package usecase

import (
	"errors"
	"fmt"
	"math"

	"NiftyEdge/internal/domain/models"
	drepo "NiftyEdge/internal/domain/repository"
	"NiftyEdge/internal/services/classify"
	"NiftyEdge/internal/services/features"
)

var (
	// ErrNoThresholds means no threshold snapshot has been loaded yet.
	ErrNoThresholds = errors.New("no threshold snapshot loaded")
	// ErrInvalidInput means the entered prices can not describe a session.
	ErrInvalidInput = errors.New("invalid OHLC input")
)

// LiveClassifier labels one new observation with the batch rules and a persisted snapshot.
type LiveClassifier struct {
	metrics drepo.Metrics
}

func NewLiveClassifier(metrics drepo.Metrics) *LiveClassifier {
	return &LiveClassifier{metrics: metrics}
}

// Classify derives features from the previous session, then labels the candle state,
// open context and today's gap. Labels use the same serialization as the table keys.
func (c *LiveClassifier) Classify(in models.LiveInput, th *models.Thresholds) (*models.LiveResult, error) {
	if th == nil {
		c.metrics.RecordLiveClassification("no_thresholds")
		return nil, ErrNoThresholds
	}
	if err := validateLive(in); err != nil {
		c.metrics.RecordLiveClassification("invalid")
		return nil, err
	}

	f := features.DeriveLive(in)
	candle := classify.ClassifyCandle(f, *th)
	open, _ := classify.ClassifyOpen(in.TodayOpen, f)
	gap := classify.AnalyzeGap(in.TodayOpen, math.NaN(), math.NaN(), in.PrevClose)

	c.metrics.RecordLiveClassification("ok")
	return &models.LiveResult{
		Date:        in.Date,
		Features:    f,
		Thresholds:  *th,
		CandleState: candle.String(),
		OpenContext: open.String(),
		Candle:      candle,
		Open:        open,
		Gap:         gap,
	}, nil
}

func validateLive(in models.LiveInput) error {
	prices := []struct {
		name string
		v    float64
	}{
		{"prev_open", in.PrevOpen},
		{"prev_high", in.PrevHigh},
		{"prev_low", in.PrevLow},
		{"prev_close", in.PrevClose},
		{"today_open", in.TodayOpen},
	}
	for _, p := range prices {
		if math.IsNaN(p.v) || math.IsInf(p.v, 0) || p.v <= 0 {
			return fmt.Errorf("%w: %s must be a positive price, got %v", ErrInvalidInput, p.name, p.v)
		}
	}
	if in.PrevHigh < in.PrevLow {
		return fmt.Errorf("%w: prev_high %v below prev_low %v", ErrInvalidInput, in.PrevHigh, in.PrevLow)
	}
	return nil
}
