package risk

import (
	"math"

	"github.com/sells-group/siterisk/internal/category"
	"github.com/sells-group/siterisk/internal/metric"
	"github.com/sells-group/siterisk/internal/model"
)

// Level is a risk band.
type Level string

// Risk bands, in ascending order.
const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelVeryHigh Level = "VERY_HIGH"
)

// Rank orders bands from LOW (1) to VERY_HIGH (4).
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	case LevelVeryHigh:
		return 4
	}
	return 0
}

// SubScores are the per-dimension 0-100 risk values before weighting.
type SubScores map[model.Dimension]float64

// Result is a scored location.
type Result struct {
	Score      float64   `json:"score"`
	Level      Level     `json:"level"`
	SubScores  SubScores `json:"sub_scores"`
	Weighted   float64   `json:"weighted"`
	Adjustment float64   `json:"adjustment"`
}

// Scorer applies category weights to metric sub-scores.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config { return s.cfg }

// SubScores maps each metric bucket to its sub-score. Unmapped buckets score
// a neutral 50.
func (s *Scorer) SubScores(cat category.Category, b metric.Bundle) SubScores {
	traffic := lookup(s.cfg.Traffic, b.Traffic.Level)
	if cat.InverseTraffic {
		traffic = 100 - traffic
	}
	return SubScores{
		model.DimCompetition: lookup(s.cfg.Competition, b.Competition.Level),
		model.DimTraffic:     traffic,
		model.DimCost:        lookup(s.cfg.Cost, b.Cost.Level),
		model.DimSurvival:    lookup(s.cfg.Survival, b.Survival.Level),
		model.DimAnchor:      lookup(s.cfg.Anchor, b.Anchor.Proximity),
	}
}

func lookup[K comparable](m map[K]float64, k K) float64 {
	if v, ok := m[k]; ok {
		return v
	}
	return 50
}

// Score computes the clamped, rounded risk score and its band.
func (s *Scorer) Score(cat category.Category, b metric.Bundle, area model.AreaType) Result {
	subs := s.SubScores(cat, b)

	var weighted float64
	for _, d := range model.Dimensions() {
		weighted += subs[d] * cat.Weights[d]
	}

	adj := s.cfg.AreaAdjustment[area]
	adj = math.Max(-MaxAdjustment, math.Min(MaxAdjustment, adj))

	score := clamp(weighted + adj)
	score = math.Round(score*10) / 10

	return Result{
		Score:      score,
		Level:      s.Level(score),
		SubScores:  subs,
		Weighted:   math.Round(weighted*10) / 10,
		Adjustment: adj,
	}
}

// Level maps a score to its band. Bands are half-open: [0,25) LOW,
// [25,50) MEDIUM, [50,75) HIGH, [75,100] VERY_HIGH by default.
func (s *Scorer) Level(score float64) Level {
	switch {
	case score >= s.cfg.VeryHighMin:
		return LevelVeryHigh
	case score >= s.cfg.HighMin:
		return LevelHigh
	case score >= s.cfg.MediumMin:
		return LevelMedium
	default:
		return LevelLow
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
