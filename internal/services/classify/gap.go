package classify

import (
	"math"

	"NiftyEdge/internal/domain/models"
)

// Partial fill levels as fractions of the gap measured from the previous close.
const (
	fillEighty = 0.8
	fillHalf   = 0.5
)

// AnalyzeGap measures the open against prevClose and checks same-session fills
// with high and low. Pass NaN for high/low on the live path where they are unknown.
func AnalyzeGap(open, high, low, prevClose float64) models.GapRecord {
	if math.IsNaN(prevClose) || math.IsNaN(open) {
		return models.GapRecord{}
	}

	g := open - prevClose
	rec := models.GapRecord{Defined: true, Gap: g, Direction: GapDirectionOf(g)}
	if prevClose != 0 {
		rec.SizePct = models.Float(math.Abs(g) / prevClose)
		rec.Bucket = BucketGap(*rec.SizePct)
	}

	switch {
	case g > 0:
		rec.Fill100 = low <= prevClose
		rec.Fill80 = low <= prevClose+fillEighty*g
		rec.Fill50 = low <= prevClose+fillHalf*g
	case g < 0:
		ag := math.Abs(g)
		rec.Fill100 = high >= prevClose
		rec.Fill80 = high >= prevClose-fillEighty*ag
		rec.Fill50 = high >= prevClose-fillHalf*ag
	}
	return rec
}

// GapDirectionOf classifies a gap strictly by sign.
func GapDirectionOf(g float64) models.GapDirection {
	switch {
	case g > 0:
		return models.GapUp
	case g < 0:
		return models.GapDown
	default:
		return models.NoGap
	}
}

// BucketGap maps a size fraction (0.005 = 0.5%) to its bucket. Upper bounds are inclusive.
func BucketGap(sizePct float64) models.GapBucket {
	if math.IsNaN(sizePct) || sizePct < 0 {
		return ""
	}
	pct := sizePct * 100
	switch {
	case pct <= 0.5:
		return models.GapBucketHalf
	case pct <= 1.0:
		return models.GapBucketOne
	case pct <= 2.0:
		return models.GapBucketTwo
	default:
		return models.GapBucketWide
	}
}
