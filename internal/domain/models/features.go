package models

// DerivedFeatures holds the previous-day levels and candle-shape ratios for one bar.
// Ratio fields are nil when the previous range is zero.
type DerivedFeatures struct {
	HasPrev bool `json:"has_prev"`

	PDH       float64 `json:"pdh"`
	PDL       float64 `json:"pdl"`
	PDC       float64 `json:"pdc"`
	PDO       float64 `json:"pdo"`
	PrevRange float64 `json:"prev_range"`

	Body      float64 `json:"body"`
	UpperWick float64 `json:"upper_wick"`
	LowerWick float64 `json:"lower_wick"`

	PP       float64 `json:"pp"`
	TC       float64 `json:"tc"`
	BC       float64 `json:"bc"`
	CPRWidth float64 `json:"cpr_width"`

	BodyPct         *float64 `json:"body_pct"`
	UpperPct        *float64 `json:"upper_pct"`
	LowerPct        *float64 `json:"lower_pct"`
	WickImbalance   *float64 `json:"wick_imbalance"`
	TopRejection    *float64 `json:"top_rejection"`
	BottomRejection *float64 `json:"bottom_rejection"`
}

// Thresholds are the body% cut points used by the candle classifier.
type Thresholds struct {
	Body70 *float64 `json:"body_70"`
	Body30 *float64 `json:"body_30"`
}

// Defined reports whether both cut points are available.
func (t Thresholds) Defined() bool {
	return t.Body70 != nil && t.Body30 != nil
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
