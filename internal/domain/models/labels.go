package models

import "strings"

// LabelSeparator joins the parts of every composite label.
const LabelSeparator = "|"

type CandleBase string

const (
	StrongAcceptance    CandleBase = "Strong_Acceptance"
	ExhaustionRejection CandleBase = "Exhaustion_Rejection"
	Expansion           CandleBase = "Expansion"
	Compression         CandleBase = "Compression"
	BalancedNeutral     CandleBase = "Balanced_Neutral"
)

type CandleTag string

const (
	UpperWickDominant CandleTag = "Upper_Wick_Dominant"
	LowerWickDominant CandleTag = "Lower_Wick_Dominant"
	CloseNearHigh     CandleTag = "Close_Near_High"
	CloseNearLow      CandleTag = "Close_Near_Low"
)

// CandleState is a base category plus modifier tags in evaluation order.
type CandleState struct {
	Base CandleBase  `json:"base"`
	Tags []CandleTag `json:"tags,omitempty"`
}

// String is the canonical serialization used as the candle-state table key.
func (s CandleState) String() string {
	parts := make([]string, 0, 1+len(s.Tags))
	parts = append(parts, string(s.Base))
	for _, t := range s.Tags {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, LabelSeparator)
}

// HasTag reports whether tag is present.
func (s CandleState) HasTag(tag CandleTag) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type OpenPosition string

const (
	OpenAbovePDH        OpenPosition = "Open_Above_PDH"
	OpenBelowPDL        OpenPosition = "Open_Below_PDL"
	OpenInsidePrevRange OpenPosition = "Open_Inside_Prev_Range"
)

type CPRPosition string

const (
	AboveCPR  CPRPosition = "Above_CPR"
	BelowCPR  CPRPosition = "Below_CPR"
	InsideCPR CPRPosition = "Inside_CPR"
)

type OpenQuartile string

const (
	OpenTopQuartile    OpenQuartile = "Open_Top_Quartile"
	OpenBottomQuartile OpenQuartile = "Open_Bottom_Quartile"
	OpenMiddleHalf     OpenQuartile = "Open_Middle_Half"
)

// OpenContext describes where the open sits against the previous range and CPR.
// Quartile is only set when Position is OpenInsidePrevRange.
type OpenContext struct {
	Position OpenPosition `json:"position"`
	CPR      CPRPosition  `json:"cpr"`
	Quartile OpenQuartile `json:"quartile,omitempty"`
}

// String is the canonical serialization used as the open-context table key.
func (c OpenContext) String() string {
	parts := []string{string(c.Position)}
	if c.CPR != "" {
		parts = append(parts, string(c.CPR))
	}
	if c.Quartile != "" {
		parts = append(parts, string(c.Quartile))
	}
	return strings.Join(parts, LabelSeparator)
}

type TrendTag string

const (
	TrendUpDay   TrendTag = "Trend_Up_Day"
	TrendDownDay TrendTag = "Trend_Down_Day"
	RangeChopDay TrendTag = "Range_Chop_Day"
)

type RangeTag string

const (
	ExpansionDay   RangeTag = "Expansion_Day"
	NormalRangeDay RangeTag = "Normal_Range_Day"
)

const (
	FalsePDHBreakTag   = "False_PDH_Break"
	FalsePDLBreakTag   = "False_PDL_Break"
	PDHBreakSuccessTag = "PDH_Break_Success"
	PDLBreakSuccessTag = "PDL_Break_Success"
)

// Outcome is the next-day label. A nil *Outcome means the next bar was unavailable.
type Outcome struct {
	Trend           TrendTag `json:"trend"`
	FalsePDHBreak   bool     `json:"false_pdh_break"`
	FalsePDLBreak   bool     `json:"false_pdl_break"`
	PDHBreakSuccess bool     `json:"pdh_break_success"`
	PDLBreakSuccess bool     `json:"pdl_break_success"`
	Expansion       bool     `json:"expansion"`
	NextRangePct    *float64 `json:"next_range_pct"`
}

// Range returns Expansion_Day or Normal_Range_Day.
func (o Outcome) Range() RangeTag {
	if o.Expansion {
		return ExpansionDay
	}
	return NormalRangeDay
}

func (o Outcome) String() string {
	parts := []string{string(o.Trend)}
	if o.FalsePDHBreak {
		parts = append(parts, FalsePDHBreakTag)
	}
	if o.FalsePDLBreak {
		parts = append(parts, FalsePDLBreakTag)
	}
	if o.PDHBreakSuccess {
		parts = append(parts, PDHBreakSuccessTag)
	}
	if o.PDLBreakSuccess {
		parts = append(parts, PDLBreakSuccessTag)
	}
	parts = append(parts, string(o.Range()))
	return strings.Join(parts, LabelSeparator)
}

type GapDirection string

const (
	GapUp   GapDirection = "Gap_Up"
	GapDown GapDirection = "Gap_Down"
	NoGap   GapDirection = "No_Gap"
)

type GapBucket string

const (
	GapBucketHalf GapBucket = "0-0.5%"
	GapBucketOne  GapBucket = "0.5-1%"
	GapBucketTwo  GapBucket = "1-2%"
	GapBucketWide GapBucket = ">2%"
)

// GapBuckets lists the buckets in table order.
var GapBuckets = []GapBucket{GapBucketHalf, GapBucketOne, GapBucketTwo, GapBucketWide}

// GapRecord is the open-to-previous-close gap of one bar and its same-day fills.
// Defined is false when there is no previous close; Bucket is empty when SizePct is nil.
type GapRecord struct {
	Defined   bool         `json:"defined"`
	Gap       float64      `json:"gap"`
	Direction GapDirection `json:"direction,omitempty"`
	SizePct   *float64     `json:"size_pct"`
	Bucket    GapBucket    `json:"bucket,omitempty"`
	Fill50    bool         `json:"fill_50pct"`
	Fill80    bool         `json:"fill_80pct"`
	Fill100   bool         `json:"fill_100pct"`
}

type LevelName string

const (
	LevelPDH LevelName = "PDH"
	LevelPDL LevelName = "PDL"
	LevelTC  LevelName = "TC"
	LevelBC  LevelName = "BC"
)

// LevelNames lists the tracked levels in output order.
var LevelNames = []LevelName{LevelPDH, LevelPDL, LevelTC, LevelBC}

type BreakDirection string

const (
	BreakUp   BreakDirection = "Up"
	BreakDown BreakDirection = "Down"
)

// LevelInteraction records how one bar traded around one previous-day level.
// AfterBreakRetouch and BreakSuccess are nil when the level was not broken.
type LevelInteraction struct {
	Date              string         `json:"date"`
	Seq               int            `json:"seq"`
	Level             LevelName      `json:"level"`
	LevelValue        float64        `json:"level_value"`
	Open              float64        `json:"open"`
	High              float64        `json:"high"`
	Low               float64        `json:"low"`
	Close             float64        `json:"close"`
	FirstTouch        bool           `json:"first_touch"`
	Broken            bool           `json:"broken"`
	BrokenDirection   BreakDirection `json:"broken_direction,omitempty"`
	AfterBreakRetouch *bool          `json:"after_break_retouch"`
	BreakSuccess      *bool          `json:"break_success"`
}

// LabeledRow is one bar with every label the pipeline attaches to it.
type LabeledRow struct {
	Bar        Bar                `json:"bar"`
	Features   DerivedFeatures    `json:"features"`
	Thresholds Thresholds         `json:"thresholds"`
	Candle     *CandleState       `json:"candle_state"`
	Open       *OpenContext       `json:"open_context"`
	Outcome    *Outcome           `json:"next_day_outcome"`
	Gap        GapRecord          `json:"gap"`
	Levels     []LevelInteraction `json:"levels,omitempty"`
}
