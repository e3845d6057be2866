package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"NiftyEdge/internal/domain/models"
	drepo "NiftyEdge/internal/domain/repository"
	"NiftyEdge/internal/domain/service"
	"NiftyEdge/internal/services/classify"
	"NiftyEdge/internal/services/features"
	"NiftyEdge/internal/services/thresholds"
	xlogger "NiftyEdge/pkg/logger"
)

// ErrNoBars is returned when the input produced no usable rows.
var ErrNoBars = errors.New("no bars loaded")

// Label runs the per-row pipeline over a date-sorted series. Row i is labeled with the
// thresholds the estimator gives at i and the outcome of bar i+1.
func Label(bars []models.Bar, est service.ThresholdEstimator) []models.LabeledRow {
	return labelRows(bars, features.DeriveSeries(bars), est)
}

func labelRows(bars []models.Bar, fs []models.DerivedFeatures, est service.ThresholdEstimator) []models.LabeledRow {
	rows := make([]models.LabeledRow, len(bars))
	for i, bar := range bars {
		f := fs[i]
		row := models.LabeledRow{
			Bar:        bar,
			Features:   f,
			Thresholds: est.At(i),
		}

		prevClose := math.NaN()
		if f.HasPrev {
			cs := classify.ClassifyCandle(f, row.Thresholds)
			row.Candle = &cs
			if oc, ok := classify.ClassifyOpen(bar.Open, f); ok {
				row.Open = &oc
			}
			prevClose = f.PDC
		}

		var next *models.Bar
		if i+1 < len(bars) && !bars[i+1].AfterGap {
			next = &bars[i+1]
		}
		row.Outcome = classify.LabelRowOutcome(f, next)
		row.Gap = classify.AnalyzeGap(bar.Open, bar.High, bar.Low, prevClose)
		row.Levels = classify.LevelInteractions(bar, f)
		rows[i] = row
	}
	return rows
}

// RunRequest describes one batch run.
type RunRequest struct {
	Source     drepo.BarSource
	Thresholds thresholds.Options
}

// Backtester loads a history, labels it, aggregates the tables and stores the result.
// BarStore and Publisher are optional.
type Backtester struct {
	store     drepo.ArtifactStore
	barStore  drepo.BarStore
	publisher drepo.ArtifactPublisher
	metrics   drepo.Metrics
	logger    *xlogger.Logger
	now       func() time.Time
}

func NewBacktester(
	store drepo.ArtifactStore,
	barStore drepo.BarStore,
	publisher drepo.ArtifactPublisher,
	metrics drepo.Metrics,
	logger *xlogger.Logger,
) *Backtester {
	return &Backtester{
		store:     store,
		barStore:  barStore,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one batch run end to end and returns the stored artifacts.
func (b *Backtester) Run(ctx context.Context, req RunRequest) (*models.Artifacts, error) {
	start := b.now()
	art, bars, err := b.compute(ctx, req)
	if err != nil {
		b.metrics.RecordRun("failed")
		return nil, err
	}

	if err := b.store.Save(ctx, art); err != nil {
		b.metrics.RecordError("artifact_save")
		b.metrics.RecordRun("failed")
		return nil, fmt.Errorf("save artifacts: %w", err)
	}

	if b.barStore != nil {
		if err := b.barStore.SaveBars(ctx, bars); err != nil {
			b.metrics.RecordError("bar_store")
			b.logger.Warn("save bars failed", xlogger.String("run_id", art.RunID), xlogger.Error(err))
		} else if err := b.barStore.SaveLevels(ctx, art.RunID, art.Levels); err != nil {
			b.metrics.RecordError("bar_store")
			b.logger.Warn("save level interactions failed", xlogger.String("run_id", art.RunID), xlogger.Error(err))
		}
	}

	if b.publisher != nil {
		ev := models.ArtifactsPublished{
			RunID:       art.RunID,
			GeneratedAt: art.GeneratedAt,
			Rows:        art.Rows,
			Source:      art.Source,
		}
		if err := b.publisher.PublishArtifacts(ctx, ev); err != nil {
			b.metrics.RecordError("publish")
			b.logger.Warn("publish artifacts event failed", xlogger.String("run_id", art.RunID), xlogger.Error(err))
		}
	}

	b.metrics.RecordRun("ok")
	b.metrics.RecordLatency("backtest_run", b.now().Sub(start).Seconds())
	b.logger.Info("backtest run complete",
		xlogger.String("run_id", art.RunID),
		xlogger.String("source", art.Source),
		xlogger.Int("rows", art.Rows),
		xlogger.Int("candle_states", len(art.CandleStats)),
		xlogger.Int("open_contexts", len(art.OpenStats)),
		xlogger.Int("gap_groups", len(art.GapStats)),
	)
	return art, nil
}

func (b *Backtester) compute(ctx context.Context, req RunRequest) (*models.Artifacts, []models.Bar, error) {
	if req.Source == nil {
		return nil, nil, errors.New("backtest: no bar source")
	}
	bars, err := req.Source.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load bars from %s: %w", req.Source.Describe(), err)
	}
	if len(bars) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", req.Source.Describe(), ErrNoBars)
	}
	b.metrics.RecordRows("loaded", len(bars))

	fs := features.DeriveSeries(bars)
	est, err := thresholds.New(features.BodyPctSeries(fs), req.Thresholds)
	if err != nil {
		return nil, nil, fmt.Errorf("threshold estimator: %w", err)
	}

	rows := labelRows(bars, fs, est)
	b.metrics.RecordRows("labeled", len(rows))

	art := Aggregate(rows, est.Snapshot())
	art.RunID = uuid.NewString()
	art.GeneratedAt = b.now().UTC()
	art.Source = req.Source.Describe()

	for _, r := range art.CandleStats {
		b.metrics.RecordLabel("candle_state", r.CandleState, r.TotalCount)
	}
	for _, r := range art.OpenStats {
		b.metrics.RecordLabel("open_context", r.OpenContext, r.TotalCount)
	}
	for _, r := range art.GapStats {
		b.metrics.RecordLabel("gap", string(r.GapDirection)+"|"+string(r.GapBucket), r.TotalCount)
	}

	b.logger.Debug("labeled history",
		xlogger.String("mode", string(est.Mode())),
		xlogger.Int("bars", len(bars)),
		xlogger.Bool("thresholds_defined", art.Thresholds.Defined()),
	)
	return art, bars, nil
}
