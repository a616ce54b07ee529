package cases

import (
	"math"

	"github.com/opensource-finance/sentinel/internal/domain"
)

// DefaultScoring returns the production case scoring constants.
func DefaultScoring() domain.CaseScoringConfig {
	return domain.CaseScoringConfig{
		ScoreCap:      95,
		PerAlertBonus: 0.05,
		BonusCap:      0.2,
	}
}

// caseScore blends the group's confidence values into an integer case
// score: the mean of the group's average and maximum confidence on a
// 0-100 scale, plus a capped bonus per member alert. An empty group
// scores zero.
func caseScore(cfg domain.CaseScoringConfig, group []domain.Alert) int {
	if len(group) == 0 {
		return 0
	}
	var sum, max float64
	for i := range group {
		s := group[i].Confidence
		sum += s
		if s > max {
			max = s
		}
	}
	avg := sum / float64(len(group))
	bonus := math.Min(float64(len(group))*cfg.PerAlertBonus, cfg.BonusCap)
	raw := (avg+max)/2*100 + bonus*100
	return int(math.Round(math.Min(float64(cfg.ScoreCap), raw)))
}
