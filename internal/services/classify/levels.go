package classify

import (
	"math"

	"NiftyEdge/internal/domain/models"
)

// LevelInteractions reports how bar traded around each previous-day level
// (PDH, PDL, TC, BC). Bars without a previous session produce no rows.
func LevelInteractions(bar models.Bar, f models.DerivedFeatures) []models.LevelInteraction {
	if !f.HasPrev || anyNaN(bar.Open, bar.High, bar.Low, bar.Close) {
		return nil
	}
	levels := map[models.LevelName]float64{
		models.LevelPDH: f.PDH,
		models.LevelPDL: f.PDL,
		models.LevelTC:  f.TC,
		models.LevelBC:  f.BC,
	}

	out := make([]models.LevelInteraction, 0, len(models.LevelNames))
	for _, name := range models.LevelNames {
		lvl := levels[name]
		if math.IsNaN(lvl) {
			continue
		}
		out = append(out, levelInteraction(bar, name, lvl))
	}
	return out
}

func levelInteraction(bar models.Bar, name models.LevelName, lvl float64) models.LevelInteraction {
	li := models.LevelInteraction{
		Date:       bar.DateLabel(),
		Seq:        bar.Seq,
		Level:      name,
		LevelValue: lvl,
		Open:       bar.Open,
		High:       bar.High,
		Low:        bar.Low,
		Close:      bar.Close,
		FirstTouch: bar.High >= lvl && bar.Low <= lvl,
	}

	// BrokenDirection is the side the session opened on, set even without a break;
	// an open exactly at the level can not break it.
	switch {
	case bar.Open < lvl:
		li.Broken = bar.High > lvl
		li.BrokenDirection = models.BreakUp
	case bar.Open > lvl:
		li.Broken = bar.Low < lvl
		li.BrokenDirection = models.BreakDown
	}

	if !li.Broken {
		return li
	}
	if li.BrokenDirection == models.BreakUp {
		li.AfterBreakRetouch = models.Bool(bar.Close < lvl)
		li.BreakSuccess = models.Bool(bar.Close >= lvl)
	} else {
		li.AfterBreakRetouch = models.Bool(bar.Close > lvl)
		li.BreakSuccess = models.Bool(bar.Close <= lvl)
	}
	return li
}
