package models

// LiveInput is the previous session's OHLC plus today's open.
type LiveInput struct {
	Date      string  `json:"date,omitempty"`
	PrevOpen  float64 `json:"prev_open"`
	PrevHigh  float64 `json:"prev_high"`
	PrevLow   float64 `json:"prev_low"`
	PrevClose float64 `json:"prev_close"`
	TodayOpen float64 `json:"today_open"`
}

// LiveResult carries labels formatted exactly like the aggregated table keys.
type LiveResult struct {
	Date        string          `json:"date,omitempty"`
	Features    DerivedFeatures `json:"features"`
	Thresholds  Thresholds      `json:"thresholds"`
	CandleState string          `json:"candle_state"`
	OpenContext string          `json:"open_context"`
	Candle      CandleState     `json:"candle"`
	Open        OpenContext     `json:"open"`
	Gap         GapRecord       `json:"gap"`
}

type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

type Action string

const (
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
	ActionWait  Action = "WAIT"
)

// EdgeSummary combines the candle and open-context tables into one directional read.
type EdgeSummary struct {
	CandleUp      float64 `json:"candle_up"`
	CandleDown    float64 `json:"candle_down"`
	LevelUp       float64 `json:"level_up"`
	LevelDown     float64 `json:"level_down"`
	ConsensusBull float64 `json:"consensus_bull"`
	ConsensusBear float64 `json:"consensus_bear"`
	GapFillProb   float64 `json:"gap_fill_prob"`
	Bias          Bias    `json:"bias"`
	Confidence    float64 `json:"confidence"`
	Action        Action  `json:"action"`
	GapHint       string  `json:"gap_hint,omitempty"`
}

// EdgeReport is a live classification joined with the matching table rows.
// A nil row means the label never occurred in the history.
type EdgeReport struct {
	RunID   string          `json:"run_id"`
	Result  LiveResult      `json:"result"`
	Candle  *CandleStateRow `json:"candle_stats"`
	Open    *OpenContextRow `json:"open_stats"`
	Gap     *GapRow         `json:"gap_stats"`
	Summary EdgeSummary     `json:"summary"`
}

// HistoricalCheck is the realized next-day outcome for a date in the loaded history.
type HistoricalCheck struct {
	Date     string  `json:"date"`
	NextDate string  `json:"next_date"`
	Outcome  string  `json:"outcome"`
	Detail   Outcome `json:"detail"`
}
