package classify

import (
	"math"
	"testing"

	"NiftyEdge/internal/domain/models"
	"NiftyEdge/internal/services/features"
)

func shape(bp, up, lo, imb, top, bot float64) models.DerivedFeatures {
	return models.DerivedFeatures{
		HasPrev:         true,
		PrevRange:       10,
		BodyPct:         models.Float(bp),
		UpperPct:        models.Float(up),
		LowerPct:        models.Float(lo),
		WickImbalance:   models.Float(imb),
		TopRejection:    models.Float(top),
		BottomRejection: models.Float(bot),
	}
}

func TestClassifyCandle(t *testing.T) {
	th := models.Thresholds{Body70: models.Float(0.6), Body30: models.Float(0.3)}
	cases := []struct {
		name string
		f    models.DerivedFeatures
		th   models.Thresholds
		want string
	}{
		{"undefined thresholds", shape(0.9, 0.05, 0.05, 0, 0.5, 0.5), models.Thresholds{}, "Balanced_Neutral"},
		{"half thresholds", shape(0.9, 0.05, 0.05, 0, 0.5, 0.5), models.Thresholds{Body70: models.Float(0.6)}, "Balanced_Neutral"},
		{"strong acceptance", shape(0.8, 0.1, 0.1, 0, 0.5, 0.5), th, "Strong_Acceptance"},
		{"exhaustion", shape(0.1, 0.5, 0.4, 0.1, 0.5, 0.5), th, "Exhaustion_Rejection"},
		{"expansion", shape(0.65, 0.31, 0.04, 0.27, 0.5, 0.5), th, "Expansion"},
		{"compression", shape(0.2, 0.25, 0.25, 0, 0.5, 0.5), th, "Compression"},
		{"middle body", shape(0.45, 0.25, 0.3, -0.05, 0.5, 0.5), th, "Balanced_Neutral"},
		{"body at p70 is not above", shape(0.6, 0.1, 0.1, 0, 0.5, 0.5), th, "Balanced_Neutral"},
		{"upper dominant near low", shape(0.2, 0.65, 0.15, 0.5, 0.85, 0.15), th, "Exhaustion_Rejection|Upper_Wick_Dominant|Close_Near_Low"},
		{"lower dominant near high", shape(0.2, 0.05, 0.75, -0.7, 0.1, 0.9), th, "Exhaustion_Rejection|Lower_Wick_Dominant|Close_Near_High"},
		{"tags without thresholds", shape(0.9, 0.05, 0.05, 0, 0.1, 0.15), models.Thresholds{}, "Balanced_Neutral|Close_Near_High|Close_Near_Low"},
	}
	for _, tc := range cases {
		got := ClassifyCandle(tc.f, tc.th).String()
		if got != tc.want {
			t.Errorf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestClassifyCandleZeroRange(t *testing.T) {
	f := features.Derive(models.Bar{Open: 100, High: 100, Low: 100, Close: 100})
	th := models.Thresholds{Body70: models.Float(0.6), Body30: models.Float(0.3)}
	got := ClassifyCandle(f, th)
	if got.String() != "Balanced_Neutral" {
		t.Fatalf("zero range must be neutral without tags, got %q", got)
	}
}

func TestClassifyCandleScenario(t *testing.T) {
	// prev 92/100/90/95 with no thresholds yet
	f := features.Derive(models.Bar{Open: 92, High: 100, Low: 90, Close: 95})
	got := ClassifyCandle(f, models.Thresholds{})
	if got.Base != models.BalancedNeutral {
		t.Fatalf("expected neutral base, got %s", got.Base)
	}
}

func TestClassifyOpen(t *testing.T) {
	f := features.Derive(models.Bar{Open: 92, High: 100, Low: 90, Close: 95})
	cases := []struct {
		open float64
		want string
	}{
		{102, "Open_Above_PDH|Above_CPR"},
		{85, "Open_Below_PDL|Below_CPR"},
		{98, "Open_Inside_Prev_Range|Above_CPR|Open_Top_Quartile"},
		{97.5, "Open_Inside_Prev_Range|Above_CPR|Open_Middle_Half"},
		{92, "Open_Inside_Prev_Range|Below_CPR|Open_Bottom_Quartile"},
		{92.5, "Open_Inside_Prev_Range|Below_CPR|Open_Middle_Half"},
		{95, "Open_Inside_Prev_Range|Inside_CPR|Open_Middle_Half"},
		{100, "Open_Inside_Prev_Range|Above_CPR|Open_Top_Quartile"},
		{90, "Open_Inside_Prev_Range|Below_CPR|Open_Bottom_Quartile"},
	}
	for _, tc := range cases {
		ctx, ok := ClassifyOpen(tc.open, f)
		if !ok {
			t.Fatalf("expected context for open %v", tc.open)
		}
		if ctx.String() != tc.want {
			t.Errorf("open %v: got %q want %q", tc.open, ctx.String(), tc.want)
		}
	}
}

func TestClassifyOpenOutsideRangeHasNoQuartile(t *testing.T) {
	bars := []models.Bar{
		{Open: 10, High: 20, Low: 5, Close: 6},
		{Open: 30, High: 31, Low: 29, Close: 30},
		{Open: 1, High: 2, Low: 0.5, Close: 1},
	}
	for i := 1; i < len(bars); i++ {
		ctx, _ := ClassifyOpen(bars[i].Open, features.Derive(bars[i-1]))
		if ctx.Position != models.OpenInsidePrevRange && ctx.Quartile != "" {
			t.Fatalf("quartile on outside open: %q", ctx.String())
		}
	}
}

func TestClassifyOpenZeroRange(t *testing.T) {
	f := features.Derive(models.Bar{Open: 100, High: 100, Low: 100, Close: 100})
	ctx, _ := ClassifyOpen(100, f)
	if ctx.String() != "Open_Inside_Prev_Range|Inside_CPR|Open_Middle_Half" {
		t.Fatalf("unexpected context %q", ctx.String())
	}
	if _, ok := ClassifyOpen(100, models.DerivedFeatures{}); ok {
		t.Fatalf("expected no context without a previous session")
	}
}

func TestLabelOutcome(t *testing.T) {
	cases := []struct {
		name string
		next models.Bar
		want string
	}{
		{"trend up break", models.Bar{Open: 101, High: 110, Low: 100.5, Close: 109}, "Trend_Up_Day|PDH_Break_Success|Normal_Range_Day"},
		{"false both sides", models.Bar{Open: 95, High: 101, Low: 89, Close: 95}, "Range_Chop_Day|False_PDH_Break|False_PDL_Break|Normal_Range_Day"},
		{"trend down expansion", models.Bar{Open: 99, High: 99.5, Low: 80, Close: 81}, "Trend_Down_Day|PDL_Break_Success|Expansion_Day"},
		{"close at pdh counts as success", models.Bar{Open: 96, High: 101, Low: 95, Close: 100}, "Trend_Up_Day|PDH_Break_Success|Normal_Range_Day"},
		{"flat next bar", models.Bar{Open: 95, High: 95, Low: 95, Close: 95}, "Range_Chop_Day|Normal_Range_Day"},
	}
	for _, tc := range cases {
		got := LabelOutcome(100, 90, 10, tc.next)
		if got == nil {
			t.Fatalf("%s: unexpected undefined outcome", tc.name)
		}
		if got.String() != tc.want {
			t.Errorf("%s: got %q want %q", tc.name, got.String(), tc.want)
		}
	}
}

func TestLabelOutcomeFlags(t *testing.T) {
	o := LabelOutcome(100, 90, 10, models.Bar{Open: 101, High: 110, Low: 100.5, Close: 109})
	if !o.PDHBreakSuccess || o.FalsePDHBreak || o.Expansion {
		t.Fatalf("unexpected flags %+v", o)
	}
	if o.NextRangePct == nil || math.Abs(*o.NextRangePct-0.95) > 1e-12 {
		t.Fatalf("unexpected next range pct %v", o.NextRangePct)
	}
}

func TestLabelOutcomeUndefined(t *testing.T) {
	if LabelOutcome(100, 90, 10, models.Bar{Open: 1, High: math.NaN(), Low: 1, Close: 1}) != nil {
		t.Fatalf("expected undefined outcome on missing next price")
	}
	if LabelRowOutcome(models.DerivedFeatures{HasPrev: true}, nil) != nil {
		t.Fatalf("expected undefined outcome at end of series")
	}
	o := LabelOutcome(100, 100, 0, models.Bar{Open: 99, High: 120, Low: 98, Close: 119})
	if o.Range() != models.NormalRangeDay || o.NextRangePct != nil {
		t.Fatalf("zero previous range must be normal with undefined ratio")
	}
}

func TestAnalyzeGap(t *testing.T) {
	g := AnalyzeGap(50, math.NaN(), math.NaN(), 49.5)
	if g.Direction != models.GapUp || g.Bucket != models.GapBucketTwo {
		t.Fatalf("unexpected gap %+v", g)
	}
	if math.Abs(g.Gap-0.5) > 1e-12 || math.Abs(*g.SizePct-0.5/49.5) > 1e-12 {
		t.Fatalf("unexpected gap size %+v", g)
	}
	if g.Fill50 || g.Fill80 || g.Fill100 {
		t.Fatalf("live gap can not be filled")
	}

	none := AnalyzeGap(100, 101, 99, 100)
	if none.Direction != models.NoGap || none.Bucket != models.GapBucketHalf || none.Fill100 {
		t.Fatalf("unexpected no-gap record %+v", none)
	}

	zero := AnalyzeGap(100, 101, 99, 0)
	if !zero.Defined || zero.SizePct != nil || zero.Bucket != "" {
		t.Fatalf("zero previous close must leave bucket undefined: %+v", zero)
	}

	if AnalyzeGap(100, 101, 99, math.NaN()).Defined {
		t.Fatalf("missing previous close must be undefined")
	}
}

func TestGapFills(t *testing.T) {
	cases := []struct {
		name                 string
		open, high, low      float64
		fill50, fill80, full bool
	}{
		{"up full", 110, 112, 100, true, true, true},
		{"up half", 110, 112, 104, true, true, false},
		{"up eighty only", 110, 112, 106, false, true, false},
		{"up none", 110, 112, 109, false, false, false},
		{"down full", 90, 100, 88, true, true, true},
		{"down half", 90, 96, 88, true, true, false},
		{"down eighty only", 90, 93, 88, false, true, false},
		{"down none", 90, 91, 88, false, false, false},
	}
	for _, tc := range cases {
		g := AnalyzeGap(tc.open, tc.high, tc.low, 100)
		if g.Fill50 != tc.fill50 || g.Fill80 != tc.fill80 || g.Fill100 != tc.full {
			t.Errorf("%s: got 50=%v 80=%v 100=%v", tc.name, g.Fill50, g.Fill80, g.Fill100)
		}
	}
}

func TestBucketGapBoundaries(t *testing.T) {
	cases := []struct {
		pct  float64
		want models.GapBucket
	}{
		{0, models.GapBucketHalf},
		{0.005, models.GapBucketHalf},
		{0.0050001, models.GapBucketOne},
		{0.01, models.GapBucketOne},
		{0.0150, models.GapBucketTwo},
		{0.02, models.GapBucketTwo},
		{0.0201, models.GapBucketWide},
		{math.NaN(), ""},
	}
	for _, tc := range cases {
		if got := BucketGap(tc.pct); got != tc.want {
			t.Errorf("bucket(%v) = %q want %q", tc.pct, got, tc.want)
		}
	}
}

func TestLevelInteractions(t *testing.T) {
	f := features.Derive(models.Bar{Open: 92, High: 100, Low: 90, Close: 95})
	bar := models.Bar{Seq: 1, Open: 98, High: 101, Low: 97, Close: 100.5}
	rows := LevelInteractions(bar, f)
	if len(rows) != 4 {
		t.Fatalf("expected 4 level rows, got %d", len(rows))
	}
	pdh := rows[0]
	if pdh.Level != models.LevelPDH || !pdh.FirstTouch || !pdh.Broken || pdh.BrokenDirection != models.BreakUp {
		t.Fatalf("unexpected pdh row %+v", pdh)
	}
	if *pdh.AfterBreakRetouch || !*pdh.BreakSuccess {
		t.Fatalf("pdh break should hold")
	}
	pdl := rows[1]
	if pdl.FirstTouch || pdl.Broken || pdl.BrokenDirection != models.BreakDown || pdl.BreakSuccess != nil || pdl.AfterBreakRetouch != nil {
		t.Fatalf("unexpected pdl row %+v", pdl)
	}
	if rows[2].Level != models.LevelTC || rows[3].Level != models.LevelBC {
		t.Fatalf("unexpected level order")
	}
	if pdh.Date != "1" {
		t.Fatalf("expected sequence date label, got %q", pdh.Date)
	}
}

func TestLevelInteractionOpenAtLevel(t *testing.T) {
	f := features.Derive(models.Bar{Open: 92, High: 100, Low: 90, Close: 95})
	rows := LevelInteractions(models.Bar{Open: 100, High: 102, Low: 99, Close: 99.5}, f)
	if rows[0].Broken || rows[0].BrokenDirection != "" || !rows[0].FirstTouch {
		t.Fatalf("open at level must not break it: %+v", rows[0])
	}
	down := LevelInteractions(models.Bar{Open: 96, High: 97, Low: 94, Close: 95.5}, f)
	tc := down[2]
	if !tc.Broken || tc.BrokenDirection != models.BreakDown || !*tc.AfterBreakRetouch || *tc.BreakSuccess {
		t.Fatalf("expected failed downside break of TC: %+v", tc)
	}
	if LevelInteractions(models.Bar{Open: 1, High: 1, Low: 1, Close: 1}, models.DerivedFeatures{}) != nil {
		t.Fatalf("no rows without previous session")
	}
}
