package models

import "time"

// CandleStateRow is one row of the candle-state probability table.
type CandleStateRow struct {
	CandleState        string   `json:"candle_state"`
	TotalCount         int      `json:"total_count"`
	OutcomeCount       int      `json:"outcome_count"`
	ProbTrendUp        float64  `json:"prob_trend_up"`
	ProbTrendDown      float64  `json:"prob_trend_down"`
	ProbRangeChop      float64  `json:"prob_range_chop"`
	AvgNextDayRangePct *float64 `json:"avg_next_day_range_pct"`
}

// OpenContextRow is one row of the open-context probability table.
type OpenContextRow struct {
	OpenContext         string   `json:"open_context"`
	TotalCount          int      `json:"total_count"`
	OutcomeCount        int      `json:"outcome_count"`
	ProbTrendUp         float64  `json:"prob_trend_up"`
	ProbTrendDown       float64  `json:"prob_trend_down"`
	ProbRangeChop       float64  `json:"prob_range_chop"`
	ProbPDHBreakSuccess float64  `json:"prob_pdh_break_success"`
	ProbPDLBreakSuccess float64  `json:"prob_pdl_break_success"`
	ProbFalsePDHBreak   float64  `json:"prob_false_pdh_break"`
	ProbFalsePDLBreak   float64  `json:"prob_false_pdl_break"`
	AvgNextDayRangePct  *float64 `json:"avg_next_day_range_pct"`
}

// GapRow is one row of the gap probability table, keyed by direction and bucket.
type GapRow struct {
	GapDirection   GapDirection `json:"gap_direction"`
	GapBucket      GapBucket    `json:"gap_bucket"`
	TotalCount     int          `json:"total_count"`
	ProbFill50Pct  float64      `json:"prob_fill_50pct"`
	ProbFill80Pct  float64      `json:"prob_fill_80pct"`
	ProbFill100Pct float64      `json:"prob_fill_100pct"`
	AvgGapSizePct  *float64     `json:"avg_gap_size_pct"`
}

// LevelSummaryRow condenses the level-interaction table per level.
// Retouch and success probabilities are conditioned on the level being broken.
type LevelSummaryRow struct {
	Level                 LevelName `json:"level"`
	TotalCount            int       `json:"total_count"`
	BrokenCount           int       `json:"broken_count"`
	ProbTouch             float64   `json:"prob_touch"`
	ProbBroken            float64   `json:"prob_broken"`
	ProbRetouchAfterBreak float64   `json:"prob_retouch_after_break"`
	ProbBreakSuccess      float64   `json:"prob_break_success"`
}

// Artifacts is the full output of one batch run. The live path reads thresholds and
// tables from the same value so the two paths cannot drift apart.
type Artifacts struct {
	RunID        string             `json:"run_id"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Source       string             `json:"source"`
	Rows         int                `json:"rows"`
	Thresholds   Thresholds         `json:"thresholds"`
	CandleStats  []CandleStateRow   `json:"candle_stats"`
	OpenStats    []OpenContextRow   `json:"open_stats"`
	GapStats     []GapRow           `json:"gap_stats"`
	LevelSummary []LevelSummaryRow  `json:"level_summary"`
	Levels       []LevelInteraction `json:"levels,omitempty"`
}

// CandleRow returns the candle-state row with the given key.
func (a *Artifacts) CandleRow(key string) (CandleStateRow, bool) {
	for _, r := range a.CandleStats {
		if r.CandleState == key {
			return r, true
		}
	}
	return CandleStateRow{}, false
}

// OpenRow returns the open-context row with the given key.
func (a *Artifacts) OpenRow(key string) (OpenContextRow, bool) {
	for _, r := range a.OpenStats {
		if r.OpenContext == key {
			return r, true
		}
	}
	return OpenContextRow{}, false
}

// GapRowFor returns the gap row for the direction and bucket pair.
func (a *Artifacts) GapRowFor(dir GapDirection, bucket GapBucket) (GapRow, bool) {
	for _, r := range a.GapStats {
		if r.GapDirection == dir && r.GapBucket == bucket {
			return r, true
		}
	}
	return GapRow{}, false
}

// ArtifactsPublished is the event emitted after a run's artifacts are stored.
type ArtifactsPublished struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Rows        int       `json:"rows"`
	Source      string    `json:"source"`
}
