package classify

import (
	"math"

	"NiftyEdge/internal/domain/models"
)

const (
	trendBody      = 0.6
	expansionRatio = 1.2
)

// LabelOutcome labels next against the reference high/low and range. It returns nil
// when any next-bar price is missing.
func LabelOutcome(pdh, pdl, prevRange float64, next models.Bar) *models.Outcome {
	nh, nl, nc, no := next.High, next.Low, next.Close, next.Open
	if anyNaN(nh, nl, nc, no) {
		return nil
	}

	out := &models.Outcome{Trend: models.RangeChopDay}
	nrange := nh - nl
	if nrange != 0 {
		nbody := math.Abs(nc-no) / nrange
		switch {
		case nbody > trendBody && nc > no:
			out.Trend = models.TrendUpDay
		case nbody > trendBody && nc < no:
			out.Trend = models.TrendDownDay
		}
	}

	out.FalsePDHBreak = nh > pdh && nc < pdh
	out.FalsePDLBreak = nl < pdl && nc > pdl
	out.PDHBreakSuccess = nh > pdh && nc >= pdh
	out.PDLBreakSuccess = nl < pdl && nc <= pdl

	if prevRange != 0 && !math.IsNaN(prevRange) {
		out.Expansion = nrange > prevRange*expansionRatio
		out.NextRangePct = models.Float(nrange / prevRange)
	}
	return out
}

// LabelRowOutcome labels the bar after row against row's previous-day levels.
func LabelRowOutcome(f models.DerivedFeatures, next *models.Bar) *models.Outcome {
	if next == nil || !f.HasPrev {
		return nil
	}
	return LabelOutcome(f.PDH, f.PDL, f.PrevRange, *next)
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
