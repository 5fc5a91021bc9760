package riskcard

import (
	"fmt"
	"math"
	"sort"

	"github.com/sells-group/siterisk/internal/category"
	"github.com/sells-group/siterisk/internal/metric"
	"github.com/sells-group/siterisk/internal/model"
	"github.com/sells-group/siterisk/internal/risk"
)

// Severity labels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Badge is one piece of supporting evidence.
type Badge struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Card is a ranked risk statement.
type Card struct {
	Dimension  model.Dimension `json:"dimension"`
	Topic      string          `json:"topic"`
	Severity   string          `json:"severity"`
	Score      float64         `json:"score"`
	Headline   string          `json:"headline"`
	Evidence   []Badge         `json:"evidence"`
	FieldCheck string          `json:"field_check"`
}

// Input carries the scored metrics for one location.
type Input struct {
	Category  category.Category
	Metrics   metric.Bundle
	SubScores risk.SubScores
	Area      model.AreaType
}

// Ranker builds and ranks cards. It holds no mutable state.
type Ranker struct {
	cfg     Config
	scoring risk.Config
	order   map[model.Dimension]int
}

// NewRanker creates a Ranker. scoring supplies the bucket sub-scores for
// candidates that look at a secondary bucket, such as overall store density.
func NewRanker(cfg Config, scoring risk.Config) *Ranker {
	order := make(map[model.Dimension]int, len(cfg.Priority))
	for i, d := range cfg.Priority {
		order[d] = i
	}
	return &Ranker{cfg: cfg, scoring: scoring, order: order}
}

// Deviation converts a sub-score into a 0-100 severity: zero at or below the
// baseline, 100 at a sub-score of 100.
func Deviation(sub, baseline float64) float64 {
	if baseline >= 100 {
		return 0
	}
	d := (sub - baseline) / (100 - baseline) * 100
	d = math.Max(0, math.Min(100, d))
	return math.Round(d*10) / 10
}

// Label maps a severity score to its label.
func (r *Ranker) Label(score float64) string {
	switch {
	case score >= r.cfg.CriticalMin:
		return SeverityCritical
	case score >= r.cfg.WarningMin:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Candidates returns every card with a positive severity, in generation
// order: competition, traffic, cost, survival, anchor.
func (r *Ranker) Candidates(in Input) []Card {
	m := in.Metrics
	var out []Card
	add := func(d model.Dimension, topic string, sub float64, estimated bool, headline, check string, evidence ...Badge) {
		score := Deviation(sub, r.cfg.Baselines[d])
		if estimated {
			score = math.Round(score*r.cfg.EstimatedFactor*10) / 10
		}
		if score <= 0 {
			return
		}
		out = append(out, Card{
			Dimension:  d,
			Topic:      topic,
			Severity:   r.Label(score),
			Score:      score,
			Headline:   headline,
			Evidence:   evidence,
			FieldCheck: check,
		})
	}

	// Competition.
	add(model.DimCompetition, "competition.density", in.SubScores[model.DimCompetition], false,
		fmt.Sprintf("%d %s competitors within %.0f m", m.Competition.SameCategory, categoryName(in.Category), m.Competition.RadiusM),
		"Visit the nearest competitors at peak time. Are they full or half empty?",
		Badge{"same_category", fmt.Sprintf("%d", m.Competition.SameCategory)},
		Badge{"density_km2", fmt.Sprintf("%.1f", m.Competition.SameDensityKM2)},
	)
	if sat, ok := r.scoring.Competition[m.Competition.TotalLevel]; ok {
		add(model.DimCompetition, "competition.saturation", sat, false,
			fmt.Sprintf("%d stores of all kinds within %.0f m", m.Competition.Total, m.Competition.RadiusM),
			"Count vacant storefronts on the main street. Are units turning over?",
			Badge{"total_stores", fmt.Sprintf("%d", m.Competition.Total)},
			Badge{"total_density_km2", fmt.Sprintf("%.1f", m.Competition.TotalDensityKM2)},
		)
	}

	// Traffic.
	add(model.DimTraffic, "traffic.volume", in.SubScores[model.DimTraffic], m.Traffic.LevelEstimated,
		fmt.Sprintf("Foot traffic is %s", m.Traffic.Level),
		"Count passers-by for ten minutes at your planned opening hours.",
		Badge{"traffic_level", string(m.Traffic.Level)},
		Badge{"traffic_index", indexValue(m.Traffic)},
	)
	if want := in.Category.PeakTime; want != "" && want != m.Traffic.Peak {
		gap := share(m.Traffic, m.Traffic.Peak) - share(m.Traffic, want)
		if gap > 0 {
			add(model.DimTraffic, "traffic.peak_mismatch", r.cfg.Baselines[model.DimTraffic]+2*gap, m.Traffic.PatternEstimated,
				fmt.Sprintf("Traffic peaks in the %s but %s demand peaks in the %s", m.Traffic.Peak, categoryName(in.Category), want),
				fmt.Sprintf("Check the street during the %s. Is anyone around?", want),
				Badge{"peak", string(m.Traffic.Peak)},
				Badge{"peak_share", fmt.Sprintf("%.0f%%", share(m.Traffic, m.Traffic.Peak))},
				Badge{"category_peak_share", fmt.Sprintf("%.0f%%", share(m.Traffic, want))},
			)
		}
	}
	if m.Traffic.HasWeekendRatio {
		swing := math.Abs(m.Traffic.WeekendRatio - 1)
		add(model.DimTraffic, "traffic.weekend", r.cfg.Baselines[model.DimTraffic]+swing*50, false,
			weekendHeadline(m.Traffic.WeekendRatio),
			"Compare a weekday and a weekend visit before committing.",
			Badge{"weekend_ratio", fmt.Sprintf("%.2f", m.Traffic.WeekendRatio)},
		)
	}

	// Cost.
	add(model.DimCost, "cost.rent", in.SubScores[model.DimCost], m.Cost.Defaulted,
		fmt.Sprintf("Rent level is %s", m.Cost.Level),
		"Ask two local brokers for asking rents on comparable units.",
		Badge{"average_rent", fmt.Sprintf("%.1f", m.Cost.AverageRent)},
		Badge{"cost_level", string(m.Cost.Level)},
	)

	// Survival.
	if m.Survival.Estimated {
		add(model.DimSurvival, "survival.estimated", in.SubScores[model.DimSurvival], true,
			fmt.Sprintf("Estimated survival risk is %s", m.Survival.Level),
			"Ask neighboring owners how long the last tenants lasted.",
			Badge{"survival_level", string(m.Survival.Level)},
		)
	} else {
		add(model.DimSurvival, "survival.closure", in.SubScores[model.DimSurvival], false,
			fmt.Sprintf("%.1f%% of stores closed last period", m.Survival.ClosureRate*100),
			"Ask neighboring owners why recent stores closed.",
			Badge{"closure_rate", fmt.Sprintf("%.1f%%", m.Survival.ClosureRate*100)},
			Badge{"net_change", fmt.Sprintf("%d", m.Survival.NetChange)},
		)
		if m.Survival.NetChange < 0 {
			decline := (m.Survival.ClosureRate - m.Survival.OpeningRate) * 100
			add(model.DimSurvival, "survival.net_decline", r.cfg.Baselines[model.DimSurvival]+4*decline, false,
				fmt.Sprintf("Store count shrank by %d last period", -m.Survival.NetChange),
				"Look for 'for lease' signs along the block.",
				Badge{"net_change", fmt.Sprintf("%d", m.Survival.NetChange)},
				Badge{"opening_rate", fmt.Sprintf("%.1f%%", m.Survival.OpeningRate*100)},
			)
		}
	}

	// Anchor.
	add(model.DimAnchor, "anchor.access", in.SubScores[model.DimAnchor], false,
		anchorHeadline(m.Anchor),
		"Walk from the nearest station and time the route.",
		Badge{"proximity", string(m.Anchor.Proximity)},
		Badge{"distance_m", anchorDistance(m.Anchor)},
	)

	return out
}

// Rank returns at most n cards: the most severe per dimension, sorted by
// severity descending with ties broken by the configured dimension priority.
// n <= 0 uses the configured TopN.
func (r *Ranker) Rank(in Input, n int) []Card {
	if n <= 0 {
		n = r.cfg.TopN
	}

	best := make(map[model.Dimension]Card, 5)
	for _, c := range r.Candidates(in) {
		if cur, ok := best[c.Dimension]; !ok || c.Score > cur.Score {
			best[c.Dimension] = c
		}
	}

	cards := make([]Card, 0, len(best))
	for _, c := range best {
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Score != cards[j].Score {
			return cards[i].Score > cards[j].Score
		}
		if ri, rj := r.rank(cards[i].Dimension), r.rank(cards[j].Dimension); ri != rj {
			return ri < rj
		}
		return cards[i].Topic < cards[j].Topic
	})
	if len(cards) > n {
		cards = cards[:n]
	}
	return cards
}

func (r *Ranker) rank(d model.Dimension) int {
	if i, ok := r.order[d]; ok {
		return i
	}
	return len(r.order)
}

func share(t metric.Traffic, tod model.TimeOfDay) float64 {
	switch tod {
	case model.TimeMorning:
		return t.Morning
	case model.TimeDay:
		return t.Day
	case model.TimeNight:
		return t.Night
	}
	return 0
}

func categoryName(c category.Category) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Key
}

func indexValue(t metric.Traffic) string {
	if !t.HasIndex {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", t.Index)
}

func weekendHeadline(ratio float64) string {
	if ratio >= 1 {
		return fmt.Sprintf("Weekend traffic runs %.0f%% above weekdays", (ratio-1)*100)
	}
	return fmt.Sprintf("Weekend traffic runs %.0f%% below weekdays", (1-ratio)*100)
}

func anchorHeadline(a metric.Anchor) string {
	if !a.HasAnchor {
		return fmt.Sprintf("No station within %.0f m", a.ThresholdM)
	}
	return fmt.Sprintf("%s is %.0f m away", a.Name, a.DistanceM)
}

func anchorDistance(a metric.Anchor) string {
	if !a.HasAnchor {
		return "n/a"
	}
	return fmt.Sprintf("%.0f", a.DistanceM)
}
