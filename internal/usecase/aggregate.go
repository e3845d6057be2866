package usecase

import (
	"sort"

	"NiftyEdge/internal/domain/models"
)

type outcomeCounter struct {
	total, outcomes    int
	up, down, chop     int
	pdhOK, pdlOK       int
	falsePDH, falsePDL int
	rangeSum           float64
	rangeN             int
}

func (c *outcomeCounter) add(o *models.Outcome) {
	c.total++
	if o == nil {
		return
	}
	c.outcomes++
	switch o.Trend {
	case models.TrendUpDay:
		c.up++
	case models.TrendDownDay:
		c.down++
	default:
		c.chop++
	}
	if o.PDHBreakSuccess {
		c.pdhOK++
	}
	if o.PDLBreakSuccess {
		c.pdlOK++
	}
	if o.FalsePDHBreak {
		c.falsePDH++
	}
	if o.FalsePDLBreak {
		c.falsePDL++
	}
	if o.NextRangePct != nil {
		c.rangeSum += *o.NextRangePct
		c.rangeN++
	}
}

func (c *outcomeCounter) avgRange() *float64 {
	return mean(c.rangeSum, c.rangeN)
}

type gapKey struct {
	dir    models.GapDirection
	bucket models.GapBucket
}

type gapCounter struct {
	total                int
	fill50, fill80, full int
	sizeSum              float64
	sizeN                int
}

type levelCounter struct {
	total, touched, broken, retouched, held int
}

// Aggregate groups labeled rows into the probability tables. persisted is the snapshot
// stored for live use and must be the estimator's own. Run metadata is left for the caller.
func Aggregate(rows []models.LabeledRow, persisted models.Thresholds) *models.Artifacts {
	candles := map[string]*outcomeCounter{}
	opens := map[string]*outcomeCounter{}
	gaps := map[gapKey]*gapCounter{}
	levels := map[models.LevelName]*levelCounter{}
	var details []models.LevelInteraction

	for _, r := range rows {
		if r.Candle != nil {
			counterFor(candles, r.Candle.String()).add(r.Outcome)
		}
		if r.Open != nil {
			counterFor(opens, r.Open.String()).add(r.Outcome)
		}
		if r.Gap.Defined && r.Gap.Bucket != "" {
			k := gapKey{dir: r.Gap.Direction, bucket: r.Gap.Bucket}
			g, ok := gaps[k]
			if !ok {
				g = &gapCounter{}
				gaps[k] = g
			}
			g.total++
			if r.Gap.Fill50 {
				g.fill50++
			}
			if r.Gap.Fill80 {
				g.fill80++
			}
			if r.Gap.Fill100 {
				g.full++
			}
			if r.Gap.SizePct != nil {
				g.sizeSum += *r.Gap.SizePct
				g.sizeN++
			}
		}
		for _, li := range r.Levels {
			lc, ok := levels[li.Level]
			if !ok {
				lc = &levelCounter{}
				levels[li.Level] = lc
			}
			lc.total++
			if li.FirstTouch {
				lc.touched++
			}
			if li.Broken {
				lc.broken++
				if li.AfterBreakRetouch != nil && *li.AfterBreakRetouch {
					lc.retouched++
				}
				if li.BreakSuccess != nil && *li.BreakSuccess {
					lc.held++
				}
			}
			details = append(details, li)
		}
	}

	return &models.Artifacts{
		Rows:         len(rows),
		Thresholds:   persisted,
		CandleStats:  candleTable(candles),
		OpenStats:    openTable(opens),
		GapStats:     gapTable(gaps),
		LevelSummary: levelSummary(levels),
		Levels:       details,
	}
}

func counterFor(m map[string]*outcomeCounter, key string) *outcomeCounter {
	c, ok := m[key]
	if !ok {
		c = &outcomeCounter{}
		m[key] = c
	}
	return c
}

func candleTable(m map[string]*outcomeCounter) []models.CandleStateRow {
	out := make([]models.CandleStateRow, 0, len(m))
	for _, key := range sortedKeys(m) {
		c := m[key]
		out = append(out, models.CandleStateRow{
			CandleState:        key,
			TotalCount:         c.total,
			OutcomeCount:       c.outcomes,
			ProbTrendUp:        ratio(c.up, c.outcomes),
			ProbTrendDown:      ratio(c.down, c.outcomes),
			ProbRangeChop:      ratio(c.chop, c.outcomes),
			AvgNextDayRangePct: c.avgRange(),
		})
	}
	return out
}

func openTable(m map[string]*outcomeCounter) []models.OpenContextRow {
	out := make([]models.OpenContextRow, 0, len(m))
	for _, key := range sortedKeys(m) {
		c := m[key]
		out = append(out, models.OpenContextRow{
			OpenContext:         key,
			TotalCount:          c.total,
			OutcomeCount:        c.outcomes,
			ProbTrendUp:         ratio(c.up, c.outcomes),
			ProbTrendDown:       ratio(c.down, c.outcomes),
			ProbRangeChop:       ratio(c.chop, c.outcomes),
			ProbPDHBreakSuccess: ratio(c.pdhOK, c.outcomes),
			ProbPDLBreakSuccess: ratio(c.pdlOK, c.outcomes),
			ProbFalsePDHBreak:   ratio(c.falsePDH, c.outcomes),
			ProbFalsePDLBreak:   ratio(c.falsePDL, c.outcomes),
			AvgNextDayRangePct:  c.avgRange(),
		})
	}
	return out
}

func gapTable(m map[gapKey]*gapCounter) []models.GapRow {
	keys := make([]gapKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].dir != keys[j].dir {
			return keys[i].dir < keys[j].dir
		}
		return bucketIndex(keys[i].bucket) < bucketIndex(keys[j].bucket)
	})

	out := make([]models.GapRow, 0, len(keys))
	for _, k := range keys {
		g := m[k]
		out = append(out, models.GapRow{
			GapDirection:   k.dir,
			GapBucket:      k.bucket,
			TotalCount:     g.total,
			ProbFill50Pct:  ratio(g.fill50, g.total),
			ProbFill80Pct:  ratio(g.fill80, g.total),
			ProbFill100Pct: ratio(g.full, g.total),
			AvgGapSizePct:  mean(g.sizeSum, g.sizeN),
		})
	}
	return out
}

func levelSummary(m map[models.LevelName]*levelCounter) []models.LevelSummaryRow {
	out := make([]models.LevelSummaryRow, 0, len(m))
	for _, name := range models.LevelNames {
		lc, ok := m[name]
		if !ok {
			continue
		}
		out = append(out, models.LevelSummaryRow{
			Level:                 name,
			TotalCount:            lc.total,
			BrokenCount:           lc.broken,
			ProbTouch:             ratio(lc.touched, lc.total),
			ProbBroken:            ratio(lc.broken, lc.total),
			ProbRetouchAfterBreak: ratio(lc.retouched, lc.broken),
			ProbBreakSuccess:      ratio(lc.held, lc.broken),
		})
	}
	return out
}

func bucketIndex(b models.GapBucket) int {
	for i, v := range models.GapBuckets {
		if v == b {
			return i
		}
	}
	return len(models.GapBuckets)
}

func sortedKeys(m map[string]*outcomeCounter) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func mean(sum float64, n int) *float64 {
	if n == 0 {
		return nil
	}
	return models.Float(sum / float64(n))
}
