package riskcard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siterisk/internal/category"
	"github.com/sells-group/siterisk/internal/metric"
	"github.com/sells-group/siterisk/internal/model"
	"github.com/sells-group/siterisk/internal/risk"
)

var cafe = category.Category{Key: "cafe", Name: "Cafe", PeakTime: model.TimeDay}

func newRanker() *Ranker { return NewRanker(DefaultConfig(), risk.DefaultConfig()) }

func subs(comp, traffic, cost, survival, anchor float64) risk.SubScores {
	return risk.SubScores{
		model.DimCompetition: comp,
		model.DimTraffic:     traffic,
		model.DimCost:        cost,
		model.DimSurvival:    survival,
		model.DimAnchor:      anchor,
	}
}

func dayTraffic() metric.Traffic {
	return metric.Traffic{Level: model.LevelMedium, Morning: 30, Day: 42, Night: 28, Peak: model.TimeDay}
}

func topics(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Topic
	}
	return out
}

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, ValidateConfig(DefaultConfig()))
}

func TestValidateConfig_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Priority = []model.Dimension{model.DimCost, model.DimCost}
	delete(cfg.Baselines, model.DimAnchor)
	cfg.WarningMin = 90
	cfg.EstimatedFactor = 0
	cfg.TopN = 0

	err := ValidateConfig(cfg)
	require.Error(t, err)
	for _, want := range []string{"cost twice", "baselines missing anchor", "priority missing survival", "severity bands", "estimated_factor", "top_n"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestDeviation(t *testing.T) {
	assert.Zero(t, Deviation(20, 35))
	assert.Zero(t, Deviation(35, 35))
	assert.InDelta(t, 76.9, Deviation(85, 35), 1e-9)
	assert.InDelta(t, 100, Deviation(100, 40), 1e-9)
	assert.InDelta(t, 100, Deviation(140, 40), 1e-9)
	assert.Zero(t, Deviation(100, 100))
}

func TestLabel(t *testing.T) {
	r := newRanker()
	assert.Equal(t, SeverityInfo, r.Label(39.9))
	assert.Equal(t, SeverityWarning, r.Label(40))
	assert.Equal(t, SeverityWarning, r.Label(69.9))
	assert.Equal(t, SeverityCritical, r.Label(70))
}

func TestRank_TopThreeBySeverity(t *testing.T) {
	in := Input{
		Category: cafe,
		Metrics: metric.Bundle{
			Competition: metric.Competition{SameCategory: 12, Total: 90, Level: model.LevelHigh, TotalLevel: model.LevelHigh},
			Traffic:     dayTraffic(),
			Cost:        metric.Cost{AverageRent: 70, Level: model.LevelHigh},
			Survival:    metric.Survival{ClosureRate: 0.15, OpeningRate: 0.2, NetChange: 2, Level: model.LevelHigh},
			Anchor:      metric.Anchor{Proximity: model.ProximityNone},
		},
		SubScores: subs(85, 65, 80, 80, 65),
	}

	cards := newRanker().Rank(in, 3)
	require.Len(t, cards, 3)
	assert.Equal(t, []string{"competition.density", "survival.closure", "cost.rent"}, topics(cards))
	assert.InDelta(t, 76.9, cards[0].Score, 1e-9)
	assert.Equal(t, SeverityCritical, cards[0].Severity)
	assert.InDelta(t, 69.2, cards[1].Score, 1e-9)
	assert.Equal(t, SeverityWarning, cards[1].Severity)
	assert.InDelta(t, 66.7, cards[2].Score, 1e-9)
	assert.NotEmpty(t, cards[0].Evidence)
	assert.NotEmpty(t, cards[0].FieldCheck)
}

func TestRank_EqualSeverityUsesDimensionPriority(t *testing.T) {
	in := Input{
		Category: cafe,
		Metrics: metric.Bundle{
			Competition: metric.Competition{Level: model.LevelHigh, TotalLevel: model.LevelLow},
			Traffic:     dayTraffic(),
			Cost:        metric.Cost{Level: model.LevelHigh},
			Survival:    metric.Survival{ClosureRate: 0.2, OpeningRate: 0.2, Level: model.LevelHigh},
			Anchor:      metric.Anchor{Proximity: model.ProximityAdjacent, HasAnchor: true, Name: "Gangnam", DistanceM: 100},
		},
		SubScores: subs(80, 20, 80, 80, 15),
	}

	cards := newRanker().Rank(in, 3)
	require.Len(t, cards, 3)
	assert.Equal(t, []model.Dimension{model.DimSurvival, model.DimCompetition, model.DimCost}, []model.Dimension{
		cards[0].Dimension, cards[1].Dimension, cards[2].Dimension,
	})
	assert.Equal(t, cards[0].Score, cards[1].Score)
}

func TestRank_OnePerDimension(t *testing.T) {
	in := Input{
		Category: cafe,
		Metrics: metric.Bundle{
			Competition: metric.Competition{Level: model.LevelHigh, TotalLevel: model.LevelHigh},
			Traffic: metric.Traffic{
				Level: model.LevelLow, Morning: 20, Day: 30, Night: 50, Peak: model.TimeNight,
				HasWeekendRatio: true, WeekendRatio: 1.6,
			},
			Cost:     metric.Cost{Level: model.LevelMedium},
			Survival: metric.Survival{ClosureRate: 0.2, OpeningRate: 0.075, NetChange: -5, Level: model.LevelHigh},
			Anchor:   metric.Anchor{Proximity: model.ProximityNone},
		},
		SubScores: subs(85, 65, 50, 80, 65),
	}
	r := newRanker()

	cands := r.Candidates(in)
	assert.Equal(t, []string{
		"competition.density", "competition.saturation",
		"traffic.volume", "traffic.peak_mismatch", "traffic.weekend",
		"cost.rent",
		"survival.closure", "survival.net_decline",
		"anchor.access",
	}, topics(cands))

	cards := r.Rank(in, 10)
	seen := map[model.Dimension]bool{}
	for i, c := range cards {
		assert.False(t, seen[c.Dimension], "duplicate %s", c.Dimension)
		seen[c.Dimension] = true
		if i > 0 {
			assert.GreaterOrEqual(t, cards[i-1].Score, c.Score)
		}
	}
	assert.Len(t, cards, 5)

	byDim := map[model.Dimension]Card{}
	for _, c := range cards {
		byDim[c.Dimension] = c
	}
	assert.Equal(t, "survival.net_decline", byDim[model.DimSurvival].Topic)
	assert.InDelta(t, 76.9, byDim[model.DimSurvival].Score, 1e-9)
	assert.Equal(t, "traffic.peak_mismatch", byDim[model.DimTraffic].Topic)
	assert.InDelta(t, 66.7, byDim[model.DimTraffic].Score, 1e-9)
	assert.Equal(t, "competition.density", byDim[model.DimCompetition].Topic)
}

func TestCandidates_WeekendHeadline(t *testing.T) {
	in := Input{
		Category:  cafe,
		Metrics:   metric.Bundle{Traffic: metric.Traffic{Peak: model.TimeDay, Day: 50, HasWeekendRatio: true, WeekendRatio: 1.6}},
		SubScores: subs(0, 0, 0, 0, 0),
	}
	cands := newRanker().Candidates(in)
	require.Len(t, cands, 1)
	assert.Equal(t, "traffic.weekend", cands[0].Topic)
	assert.InDelta(t, 50, cands[0].Score, 1e-9)
	assert.Equal(t, "Weekend traffic runs 60% above weekdays", cands[0].Headline)
}

func TestCandidates_EstimatedSurvivalDiscounted(t *testing.T) {
	in := Input{
		Category: cafe,
		Metrics: metric.Bundle{
			Traffic:  dayTraffic(),
			Survival: metric.Survival{Estimated: true, Level: model.LevelHigh},
		},
		SubScores: subs(0, 0, 0, 80, 0),
	}
	cands := newRanker().Candidates(in)
	require.Len(t, cands, 1)
	assert.Equal(t, "survival.estimated", cands[0].Topic)
	assert.InDelta(t, 55.4, cands[0].Score, 1e-9)
	assert.Equal(t, SeverityWarning, cands[0].Severity)
}

func TestRank_SafeLocationHasNoCards(t *testing.T) {
	in := Input{
		Category: cafe,
		Metrics: metric.Bundle{
			Competition: metric.Competition{Level: model.LevelLow, TotalLevel: model.LevelLow},
			Traffic:     dayTraffic(),
			Survival:    metric.Survival{Level: model.LevelLow},
		},
		SubScores: subs(20, 20, 20, 20, 15),
	}
	cards := newRanker().Rank(in, 0)
	assert.Empty(t, cards)
}

func TestRank_DefaultTopN(t *testing.T) {
	in := Input{
		Category: cafe,
		Metrics: metric.Bundle{
			Competition: metric.Competition{Level: model.LevelHigh},
			Traffic:     dayTraffic(),
			Anchor:      metric.Anchor{Proximity: model.ProximityNone},
		},
		SubScores: subs(85, 65, 80, 80, 65),
	}
	assert.Len(t, newRanker().Rank(in, 0), DefaultTopN)
}

func TestCandidates_HeadlinesUseConfiguredDistances(t *testing.T) {
	r := NewRanker(DefaultConfig(), risk.DefaultConfig())
	cands := r.Candidates(Input{
		Category: category.Category{Key: "cafe", Name: "Cafe"},
		Metrics: metric.Bundle{
			Competition: metric.Competition{SameCategory: 12, Total: 90, RadiusM: 800, Level: model.LevelHigh, TotalLevel: model.LevelHigh},
			Anchor:      metric.Anchor{Proximity: model.ProximityNone, ThresholdM: 350},
		},
		SubScores: risk.SubScores{model.DimCompetition: 90, model.DimAnchor: 90},
	})

	headlines := map[string]string{}
	for _, c := range cands {
		headlines[c.Topic] = c.Headline
	}
	assert.Equal(t, "12 Cafe competitors within 800 m", headlines["competition.density"])
	assert.Equal(t, "90 stores of all kinds within 800 m", headlines["competition.saturation"])
	assert.Equal(t, "No station within 350 m", headlines["anchor.access"])
}
