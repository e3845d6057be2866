package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"NiftyEdge/internal/domain/models"
	drepo "NiftyEdge/internal/domain/repository"
	"NiftyEdge/internal/domain/service"
	"NiftyEdge/internal/services/features"
	"NiftyEdge/internal/services/thresholds"
	xlogger "NiftyEdge/pkg/logger"
)

func TestSummarize(t *testing.T) {
	cases := []struct {
		name   string
		candle *models.CandleStateRow
		open   *models.OpenContextRow
		gap    *models.GapRow
		dir    models.GapDirection
		bias   models.Bias
		action models.Action
		hint   string
	}{
		{
			name:   "bullish long",
			candle: &models.CandleStateRow{ProbTrendUp: 0.6, ProbTrendDown: 0.1},
			open:   &models.OpenContextRow{ProbTrendUp: 0.7, ProbTrendDown: 0.1},
			bias:   models.BiasBullish,
			action: models.ActionLong,
		},
		{
			name:   "bearish short with gap hint",
			candle: &models.CandleStateRow{ProbTrendUp: 0.1, ProbTrendDown: 0.6},
			open:   &models.OpenContextRow{ProbTrendUp: 0.1, ProbTrendDown: 0.6},
			gap:    &models.GapRow{ProbFill100Pct: 0.7},
			dir:    models.GapDown,
			bias:   models.BiasBearish,
			action: models.ActionShort,
			hint:   "fill_higher",
		},
		{
			name:   "inside margin is neutral",
			candle: &models.CandleStateRow{ProbTrendUp: 0.35, ProbTrendDown: 0.3},
			open:   &models.OpenContextRow{ProbTrendUp: 0.35, ProbTrendDown: 0.32},
			gap:    &models.GapRow{ProbFill100Pct: 0.5},
			dir:    models.GapUp,
			bias:   models.BiasNeutral,
			action: models.ActionWait,
		},
		{
			name:   "missing rows count as zero",
			candle: &models.CandleStateRow{ProbTrendUp: 0.9},
			gap:    &models.GapRow{ProbFill100Pct: 0.8},
			dir:    models.GapUp,
			bias:   models.BiasBullish,
			action: models.ActionWait,
			hint:   "fill_lower",
		},
	}
	for _, tc := range cases {
		got := Summarize(tc.candle, tc.open, tc.gap, tc.dir)
		if got.Bias != tc.bias || got.Action != tc.action || got.GapHint != tc.hint {
			t.Errorf("%s: got bias=%s action=%s hint=%q", tc.name, got.Bias, got.Action, got.GapHint)
		}
	}

	s := Summarize(&models.CandleStateRow{ProbTrendUp: 0.6, ProbTrendDown: 0.2}, nil, nil, models.NoGap)
	if s.ConsensusBull != 0.3 || s.ConsensusBear != 0.1 {
		t.Fatalf("unexpected consensus %+v", s)
	}
	if s.Confidence < 19.999 || s.Confidence > 20.001 {
		t.Fatalf("unexpected confidence %v", s.Confidence)
	}
}

func loadedService(t *testing.T, bars []models.Bar) (*EdgeService, *memStore) {
	t.Helper()
	return serviceAfterRun(t, bars, thresholds.Options{Mode: service.ThresholdFrozen})
}

// serviceAfterRun runs a backtest with opts and serves its stored artifacts.
func serviceAfterRun(t *testing.T, bars []models.Bar, opts thresholds.Options) (*EdgeService, *memStore) {
	t.Helper()
	store := &memStore{}
	bt := NewBacktester(store, nil, nil, nopMetrics{}, xlogger.Nop())
	req := RunRequest{
		Source:     sliceSource{bars: bars},
		Thresholds: opts,
	}
	if _, err := bt.Run(context.Background(), req); err != nil {
		t.Fatalf("run: %v", err)
	}
	loader := NewSnapshotLoader(store, sliceSource{bars: bars}, xlogger.Nop())
	if _, err := loader.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return NewEdgeService(loader, NewLiveClassifier(nopMetrics{}), nopMetrics{}, xlogger.Nop()), store
}

func TestEdgeServiceWithoutSnapshot(t *testing.T) {
	loader := NewSnapshotLoader(&memStore{}, nil, xlogger.Nop())
	svc := NewEdgeService(loader, NewLiveClassifier(nopMetrics{}), nopMetrics{}, xlogger.Nop())
	in := models.LiveInput{PrevOpen: 92, PrevHigh: 100, PrevLow: 90, PrevClose: 95, TodayOpen: 102}

	if _, err := svc.Classify(context.Background(), in); !errors.Is(err, ErrNoThresholds) {
		t.Fatalf("expected ErrNoThresholds, got %v", err)
	}
	if _, err := svc.Report(context.Background(), in); !errors.Is(err, ErrNoThresholds) {
		t.Fatalf("expected ErrNoThresholds, got %v", err)
	}
	if _, err := svc.HistoricalCheck(context.Background(), "2024-01-02"); !errors.Is(err, drepo.ErrNoArtifacts) {
		t.Fatalf("expected ErrNoArtifacts, got %v", err)
	}
	if _, err := loader.Reload(context.Background()); !errors.Is(err, drepo.ErrNoArtifacts) {
		t.Fatalf("expected ErrNoArtifacts from empty store, got %v", err)
	}
}

func TestEdgeServiceReport(t *testing.T) {
	bars := synthBars(60)
	svc, store := loadedService(t, bars)

	prev, today := bars[40], bars[41]
	rep, err := svc.Report(context.Background(), models.LiveInput{
		PrevOpen: prev.Open, PrevHigh: prev.High, PrevLow: prev.Low, PrevClose: prev.Close, TodayOpen: today.Open,
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.RunID != store.art.RunID {
		t.Fatalf("report run id %q, stored %q", rep.RunID, store.art.RunID)
	}
	// frozen run thresholds equal the snapshot, so every key of a historical day exists
	if rep.Candle == nil || rep.Candle.CandleState != rep.Result.CandleState {
		t.Fatalf("candle row lookup failed for %q", rep.Result.CandleState)
	}
	if rep.Open == nil || rep.Open.OpenContext != rep.Result.OpenContext {
		t.Fatalf("open row lookup failed for %q", rep.Result.OpenContext)
	}
	if rep.Gap == nil {
		t.Fatalf("gap row lookup failed for %s/%s", rep.Result.Gap.Direction, rep.Result.Gap.Bucket)
	}
}

func TestStoredThresholdsMatchLabels(t *testing.T) {
	bars := synthBars(80)
	bp := features.BodyPctSeries(features.DeriveSeries(bars))
	pinned := models.Thresholds{Body70: models.Float(0.9), Body30: models.Float(0.05)}

	// frozen runs label with the stored pair, so every historical key is in the tables
	cases := []struct {
		name    string
		opts    thresholds.Options
		stored  models.Thresholds
		lookups bool
	}{
		{"rolling", thresholds.Options{Mode: service.ThresholdRolling}, thresholds.Global(bp), false},
		{"frozen own series", thresholds.Options{Mode: service.ThresholdFrozen}, thresholds.Global(bp), true},
		{"frozen pinned file", thresholds.Options{Mode: service.ThresholdFrozen, Snapshot: &pinned}, pinned, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := serviceAfterRun(t, bars, tc.opts)
			got := store.art.Thresholds
			if *got.Body70 != *tc.stored.Body70 || *got.Body30 != *tc.stored.Body30 {
				t.Fatalf("stored %v/%v, want %v/%v", *got.Body70, *got.Body30, *tc.stored.Body70, *tc.stored.Body30)
			}
			if !tc.lookups {
				return
			}

			rows := Label(bars, thresholds.NewFrozen(got))
			for i := 1; i < len(bars); i++ {
				prev := bars[i-1]
				rep, err := svc.Report(context.Background(), models.LiveInput{
					PrevOpen: prev.Open, PrevHigh: prev.High, PrevLow: prev.Low, PrevClose: prev.Close, TodayOpen: bars[i].Open,
				})
				if err != nil {
					t.Fatalf("row %d: %v", i, err)
				}
				if rep.Result.CandleState != rows[i].Candle.String() || rep.Result.OpenContext != rows[i].Open.String() {
					t.Fatalf("row %d: live %s / %s, batch %s / %s", i,
						rep.Result.CandleState, rep.Result.OpenContext, rows[i].Candle.String(), rows[i].Open.String())
				}
				if rep.Candle == nil || rep.Open == nil {
					t.Fatalf("row %d: table lookup missed %q / %q", i, rep.Result.CandleState, rep.Result.OpenContext)
				}
			}
		})
	}
}

func TestHistoricalCheck(t *testing.T) {
	bars := synthBars(10)
	svc, _ := loadedService(t, bars)

	day, next := bars[3], bars[4]
	got, err := svc.HistoricalCheck(context.Background(), day.DateLabel())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if got.NextDate != next.DateLabel() {
		t.Fatalf("unexpected next date %s", got.NextDate)
	}
	if got.Outcome != got.Detail.String() {
		t.Fatalf("outcome string drift: %q vs %q", got.Outcome, got.Detail.String())
	}

	if _, err := svc.HistoricalCheck(context.Background(), "1999-01-01"); !errors.Is(err, ErrDateNotFound) {
		t.Fatalf("expected ErrDateNotFound, got %v", err)
	}
	if _, err := svc.HistoricalCheck(context.Background(), bars[9].DateLabel()); !errors.Is(err, ErrNoNextBar) {
		t.Fatalf("expected ErrNoNextBar, got %v", err)
	}
}

func TestHistoricalCheckBeforeGap(t *testing.T) {
	bars := synthBars(10)
	bars[5].AfterGap = true
	svc, _ := loadedService(t, bars)

	if _, err := svc.HistoricalCheck(context.Background(), bars[4].DateLabel()); !errors.Is(err, ErrNoNextBar) {
		t.Fatalf("expected ErrNoNextBar before a gap, got %v", err)
	}
	if _, err := svc.HistoricalCheck(context.Background(), bars[5].DateLabel()); err != nil {
		t.Fatalf("bar after the gap still has a next session: %v", err)
	}
}

func TestArtifactsHandlerReloads(t *testing.T) {
	bars := synthBars(30)
	store := &memStore{}
	loader := NewSnapshotLoader(store, nil, xlogger.Nop())
	h := NewArtifactsHandler("niftyedge.artifacts", loader, nopMetrics{}, xlogger.Nop())

	bt := NewBacktester(store, nil, nil, nopMetrics{}, xlogger.Nop())
	art, err := bt.Run(context.Background(), RunRequest{Source: sliceSource{bars: bars}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	msg, _ := json.Marshal(models.ArtifactsPublished{RunID: art.RunID, Rows: art.Rows})
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if cur := loader.Load(); cur == nil || cur.Artifacts.RunID != art.RunID {
		t.Fatalf("snapshot not reloaded")
	}
	if err := h.Handle(context.Background(), []byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}
