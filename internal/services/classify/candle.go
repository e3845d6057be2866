package classify

import "NiftyEdge/internal/domain/models"

// Fixed wick and rejection cut points of the candle rules.
const (
	smallWick     = 0.2
	mediumWick    = 0.3
	largeWick     = 0.4
	wickDominance = 0.3
	nearExtreme   = 0.2
)

// ClassifyCandle maps previous-day shape features and body% cut points to a candle state.
// Undefined thresholds or body% give Balanced_Neutral; tags are evaluated regardless.
func ClassifyCandle(f models.DerivedFeatures, th models.Thresholds) models.CandleState {
	return models.CandleState{
		Base: candleBase(f, th),
		Tags: candleTags(f),
	}
}

func candleBase(f models.DerivedFeatures, th models.Thresholds) models.CandleBase {
	if !th.Defined() || f.BodyPct == nil {
		return models.BalancedNeutral
	}
	bp, p70, p30 := *f.BodyPct, *th.Body70, *th.Body30
	// body% defined implies the wick ratios share the same non-zero denominator
	up, lo := *f.UpperPct, *f.LowerPct

	switch {
	case bp > p70 && up < smallWick && lo < smallWick:
		return models.StrongAcceptance
	case bp < p30 && (up > largeWick || lo > largeWick):
		return models.ExhaustionRejection
	case bp > p70 && (up > mediumWick || lo > mediumWick):
		return models.Expansion
	case bp < p30 && up < mediumWick && lo < mediumWick:
		return models.Compression
	default:
		return models.BalancedNeutral
	}
}

func candleTags(f models.DerivedFeatures) []models.CandleTag {
	var tags []models.CandleTag
	if f.WickImbalance != nil {
		if *f.WickImbalance > wickDominance {
			tags = append(tags, models.UpperWickDominant)
		}
		if *f.WickImbalance < -wickDominance {
			tags = append(tags, models.LowerWickDominant)
		}
	}
	if f.TopRejection != nil && *f.TopRejection < nearExtreme {
		tags = append(tags, models.CloseNearHigh)
	}
	if f.BottomRejection != nil && *f.BottomRejection < nearExtreme {
		tags = append(tags, models.CloseNearLow)
	}
	return tags
}
