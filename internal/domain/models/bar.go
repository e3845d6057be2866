package models

import (
	"strconv"
	"time"
)

// Bar is one daily OHLC record. Seq is its position in the date-sorted series.
// AfterGap marks a bar whose previous session was in the input but had no usable prices.
type Bar struct {
	Seq      int       `json:"seq"`
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AfterGap bool      `json:"after_gap,omitempty"`
}

// HasDate reports whether the bar came from an input with a Date column.
func (b Bar) HasDate() bool { return !b.Date.IsZero() }

// DateLabel returns the calendar date, or the row position when the input had no dates.
func (b Bar) DateLabel() string {
	if b.HasDate() {
		return b.Date.Format(DateLayout)
	}
	return strconv.Itoa(b.Seq)
}

// Range returns high minus low.
func (b Bar) Range() float64 { return b.High - b.Low }

// DateLayout is the canonical date format used in artifacts and the API.
const DateLayout = "2006-01-02"
