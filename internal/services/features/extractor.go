package features

import (
	"math"

	"NiftyEdge/internal/domain/models"
)

// ComputeCPR returns pivot, top and bottom central pivot levels, swapped so tc >= bc.
func ComputeCPR(high, low, close float64) (pp, tc, bc float64) {
	pp = (high + low + close) / 3.0
	bc = (high + low) / 2.0
	tc = (pp - bc) + pp
	if tc < bc {
		tc, bc = bc, tc
	}
	return pp, tc, bc
}

// Derive computes the features a bar inherits from its previous session prev.
func Derive(prev models.Bar) models.DerivedFeatures {
	pdh, pdl, pdc, pdo := prev.High, prev.Low, prev.Close, prev.Open
	rng := pdh - pdl

	f := models.DerivedFeatures{
		HasPrev:   true,
		PDH:       pdh,
		PDL:       pdl,
		PDC:       pdc,
		PDO:       pdo,
		PrevRange: rng,
		Body:      math.Abs(pdc - pdo),
		UpperWick: pdh - math.Max(pdo, pdc),
		LowerWick: math.Min(pdo, pdc) - pdl,
	}
	f.PP, f.TC, f.BC = ComputeCPR(pdh, pdl, pdc)
	f.CPRWidth = f.TC - f.BC

	f.BodyPct = safeDiv(f.Body, rng)
	f.UpperPct = safeDiv(f.UpperWick, rng)
	f.LowerPct = safeDiv(f.LowerWick, rng)
	f.WickImbalance = safeDiv(f.UpperWick-f.LowerWick, rng)
	f.TopRejection = safeDiv(pdh-pdc, rng)
	f.BottomRejection = safeDiv(pdc-pdl, rng)
	return f
}

// DeriveLive builds the same features from manually entered previous-day prices.
func DeriveLive(in models.LiveInput) models.DerivedFeatures {
	return Derive(models.Bar{
		Open:  in.PrevOpen,
		High:  in.PrevHigh,
		Low:   in.PrevLow,
		Close: in.PrevClose,
	})
}

// DeriveSeries returns one feature set per bar. The first bar and bars after a gap have
// no predecessor.
func DeriveSeries(bars []models.Bar) []models.DerivedFeatures {
	out := make([]models.DerivedFeatures, len(bars))
	for i := 1; i < len(bars); i++ {
		if bars[i].AfterGap {
			continue
		}
		out[i] = Derive(bars[i-1])
	}
	return out
}

// BodyPctSeries extracts body% per position, NaN where undefined.
func BodyPctSeries(fs []models.DerivedFeatures) []float64 {
	out := make([]float64, len(fs))
	for i, f := range fs {
		if f.BodyPct == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *f.BodyPct
	}
	return out
}

func safeDiv(a, b float64) *float64 {
	if b == 0 || math.IsNaN(b) {
		return nil
	}
	v := a / b
	return &v
}
