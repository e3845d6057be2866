package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"NiftyEdge/internal/domain/models"
	drepo "NiftyEdge/internal/domain/repository"
	"NiftyEdge/internal/services/classify"
	xlogger "NiftyEdge/pkg/logger"
)

var (
	ErrDateNotFound = errors.New("date not found in history")
	ErrNoNextBar    = errors.New("no next session after date")
)

// Consensus cut points of the edge summary.
const (
	biasMargin     = 0.05
	actionCutoff   = 0.55
	gapFillCutoff  = 0.5
	gapHintLower   = "fill_lower"
	gapHintHigher  = "fill_higher"
	confidenceUnit = 100
)

// EdgeService answers live and historical questions against the loaded snapshot.
type EdgeService struct {
	snapshots *SnapshotLoader
	live      *LiveClassifier
	metrics   drepo.Metrics
	logger    *xlogger.Logger
}

func NewEdgeService(snapshots *SnapshotLoader, live *LiveClassifier, metrics drepo.Metrics, logger *xlogger.Logger) *EdgeService {
	return &EdgeService{snapshots: snapshots, live: live, metrics: metrics, logger: logger}
}

// Snapshot returns the current snapshot or ErrNoArtifacts.
func (s *EdgeService) Snapshot() (*Snapshot, error) {
	snap := s.snapshots.Load()
	if snap == nil || snap.Artifacts == nil {
		return nil, drepo.ErrNoArtifacts
	}
	return snap, nil
}

// Classify labels one live observation with the snapshot thresholds.
func (s *EdgeService) Classify(_ context.Context, in models.LiveInput) (*models.LiveResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordLatency("live_classify", time.Since(start).Seconds()) }()

	snap, err := s.Snapshot()
	if err != nil {
		return s.live.Classify(in, nil)
	}
	th := snap.Artifacts.Thresholds
	return s.live.Classify(in, &th)
}

// Report classifies the observation and joins it with the matching table rows.
// The whole report reads one snapshot.
func (s *EdgeService) Report(_ context.Context, in models.LiveInput) (*models.EdgeReport, error) {
	snap, err := s.Snapshot()
	if err != nil {
		_, err = s.live.Classify(in, nil)
		return nil, err
	}
	th := snap.Artifacts.Thresholds
	res, err := s.live.Classify(in, &th)
	if err != nil {
		return nil, err
	}

	art := snap.Artifacts
	rep := &models.EdgeReport{RunID: art.RunID, Result: *res}
	if row, ok := art.CandleRow(res.CandleState); ok {
		rep.Candle = &row
	} else {
		s.logger.Debug("candle state not in history", xlogger.String("candle_state", res.CandleState))
	}
	if row, ok := art.OpenRow(res.OpenContext); ok {
		rep.Open = &row
	}
	if res.Gap.Bucket != "" {
		if row, ok := art.GapRowFor(res.Gap.Direction, res.Gap.Bucket); ok {
			rep.Gap = &row
		}
	}
	rep.Summary = Summarize(rep.Candle, rep.Open, rep.Gap, res.Gap.Direction)
	return rep, nil
}

// HistoricalCheck labels the session after date against date's own high and low.
func (s *EdgeService) HistoricalCheck(_ context.Context, date string) (*models.HistoricalCheck, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, b := range snap.Bars {
		if b.DateLabel() == date {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s: %w", date, ErrDateNotFound)
	}
	if idx+1 >= len(snap.Bars) || snap.Bars[idx+1].AfterGap {
		return nil, fmt.Errorf("%s: %w", date, ErrNoNextBar)
	}

	day, next := snap.Bars[idx], snap.Bars[idx+1]
	out := classify.LabelOutcome(day.High, day.Low, day.Range(), next)
	if out == nil {
		return nil, fmt.Errorf("%s: %w", date, ErrNoNextBar)
	}
	return &models.HistoricalCheck{
		Date:     date,
		NextDate: next.DateLabel(),
		Outcome:  out.String(),
		Detail:   *out,
	}, nil
}

// Summarize averages the candle and open-context directional probabilities into one read.
// Missing rows count as zero.
func Summarize(candle *models.CandleStateRow, open *models.OpenContextRow, gap *models.GapRow, dir models.GapDirection) models.EdgeSummary {
	var sum models.EdgeSummary
	if candle != nil {
		sum.CandleUp, sum.CandleDown = candle.ProbTrendUp, candle.ProbTrendDown
	}
	if open != nil {
		sum.LevelUp, sum.LevelDown = open.ProbTrendUp, open.ProbTrendDown
	}
	sum.ConsensusBull = (sum.CandleUp + sum.LevelUp) / 2
	sum.ConsensusBear = (sum.CandleDown + sum.LevelDown) / 2

	switch {
	case sum.ConsensusBull > sum.ConsensusBear+biasMargin:
		sum.Bias = models.BiasBullish
	case sum.ConsensusBear > sum.ConsensusBull+biasMargin:
		sum.Bias = models.BiasBearish
	default:
		sum.Bias = models.BiasNeutral
	}
	sum.Confidence = math.Abs(sum.ConsensusBull-sum.ConsensusBear) * confidenceUnit

	switch {
	case sum.ConsensusBull > actionCutoff:
		sum.Action = models.ActionLong
	case sum.ConsensusBear > actionCutoff:
		sum.Action = models.ActionShort
	default:
		sum.Action = models.ActionWait
	}

	if gap != nil {
		sum.GapFillProb = gap.ProbFill100Pct
		if sum.GapFillProb > gapFillCutoff {
			switch dir {
			case models.GapUp:
				sum.GapHint = gapHintLower
			case models.GapDown:
				sum.GapHint = gapHintHigher
			}
		}
	}
	return sum
}
