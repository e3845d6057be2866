package classify

import "NiftyEdge/internal/domain/models"

const quartile = 0.25

// ClassifyOpen places the open against the previous range and CPR. ok is false when
// the bar has no previous session.
func ClassifyOpen(open float64, f models.DerivedFeatures) (ctx models.OpenContext, ok bool) {
	if !f.HasPrev {
		return models.OpenContext{}, false
	}

	switch {
	case open > f.PDH:
		ctx.Position = models.OpenAbovePDH
	case open < f.PDL:
		ctx.Position = models.OpenBelowPDL
	default:
		ctx.Position = models.OpenInsidePrevRange
	}

	switch {
	case open > f.TC:
		ctx.CPR = models.AboveCPR
	case open < f.BC:
		ctx.CPR = models.BelowCPR
	default:
		ctx.CPR = models.InsideCPR
	}

	if ctx.Position == models.OpenInsidePrevRange {
		ctx.Quartile = openQuartile(open, f)
	}
	return ctx, true
}

// Ties at exactly 0.25 fall through: top, then bottom, then middle.
func openQuartile(open float64, f models.DerivedFeatures) models.OpenQuartile {
	if f.PrevRange == 0 {
		return models.OpenMiddleHalf
	}
	if (f.PDH-open)/f.PrevRange < quartile {
		return models.OpenTopQuartile
	}
	if (open-f.PDL)/f.PrevRange < quartile {
		return models.OpenBottomQuartile
	}
	return models.OpenMiddleHalf
}
