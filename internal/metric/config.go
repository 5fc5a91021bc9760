// Package metric turns aggregated grid data into the five normalized metrics:
// competition, traffic, cost, survival and anchor proximity. Every
// calculator is a pure function of its inputs and the injected Config.
package metric

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siterisk/internal/model"
)

// Pattern is a morning/day/night share triple in percent.
type Pattern struct {
	Morning float64 `yaml:"morning" json:"morning"`
	Day     float64 `yaml:"day" json:"day"`
	Night   float64 `yaml:"night" json:"night"`
}

// Sum returns the total share.
func (p Pattern) Sum() float64 { return p.Morning + p.Day + p.Night }

// Config holds every calculator threshold. Values are business tuning and
// are expected to come from configuration.
type Config struct {
	RadiusM float64 `yaml:"radius_m"`

	// Competition, stores per km² within the radius.
	SameMediumPerKM2  float64 `yaml:"same_medium_per_km2"`
	SameHighPerKM2    float64 `yaml:"same_high_per_km2"`
	TotalMediumPerKM2 float64 `yaml:"total_medium_per_km2"`
	TotalHighPerKM2   float64 `yaml:"total_high_per_km2"`

	// Traffic index lower bounds for low, medium and high.
	TrafficLowMin    float64 `yaml:"traffic_low_min"`
	TrafficMediumMin float64 `yaml:"traffic_medium_min"`
	TrafficHighMin   float64 `yaml:"traffic_high_min"`

	// Estimated time-of-day patterns by area type, and the shift applied
	// when an anchor is nearby.
	EstimatedPatterns map[model.AreaType]Pattern     `yaml:"estimated_patterns"`
	AnchorShift       Pattern                        `yaml:"anchor_shift"`
	EstimatedLevels   map[model.AreaType]model.Level `yaml:"estimated_levels"`

	// Rent bounds. Below RentLowMax is low, at or above RentHighMin is high.
	RentLowMax  float64 `yaml:"rent_low_max"`
	RentHighMin float64 `yaml:"rent_high_min"`
	DefaultRent float64 `yaml:"default_rent"`

	// Closure-rate lower bounds for medium and high survival risk.
	ClosureMediumMin float64 `yaml:"closure_medium_min"`
	ClosureHighMin   float64 `yaml:"closure_high_min"`

	// Survival estimation point table. The summed points map to low risk
	// at or below EstimateLowMax and high risk at or above EstimateHighMin.
	SurvivalTrafficPoints map[model.Level]int    `yaml:"survival_traffic_points"`
	SurvivalCostPoints    map[model.Level]int    `yaml:"survival_cost_points"`
	SurvivalAreaPoints    map[model.AreaType]int `yaml:"survival_area_points"`
	EstimateLowMax        int                    `yaml:"estimate_low_max"`
	EstimateHighMin       int                    `yaml:"estimate_high_min"`

	// Anchor distances in meters.
	AnchorThresholdM float64 `yaml:"anchor_threshold_m"`
	AnchorAdjacentM  float64 `yaml:"anchor_adjacent_m"`
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		RadiusM: 500,

		SameMediumPerKM2:  5,
		SameHighPerKM2:    15,
		TotalMediumPerKM2: 40,
		TotalHighPerKM2:   100,

		TrafficLowMin:    25,
		TrafficMediumMin: 50,
		TrafficHighMin:   75,

		EstimatedPatterns: map[model.AreaType]Pattern{
			model.AreaResidential:    {Morning: 38, Day: 34, Night: 28},
			model.AreaMixed:          {Morning: 30, Day: 42, Night: 28},
			model.AreaCommercialCore: {Morning: 22, Day: 46, Night: 32},
			model.AreaIsolated:       {Morning: 30, Day: 45, Night: 25},
		},
		AnchorShift: Pattern{Morning: 4, Day: -6, Night: 2},
		EstimatedLevels: map[model.AreaType]model.Level{
			model.AreaResidential:    model.LevelLow,
			model.AreaMixed:          model.LevelMedium,
			model.AreaCommercialCore: model.LevelHigh,
			model.AreaIsolated:       model.LevelVeryLow,
		},

		RentLowMax:  30,
		RentHighMin: 60,
		DefaultRent: 45,

		ClosureMediumMin: 0.05,
		ClosureHighMin:   0.12,

		SurvivalTrafficPoints: map[model.Level]int{
			model.LevelVeryLow: 1,
			model.LevelLow:     1,
			model.LevelMedium:  0,
			model.LevelHigh:    -1,
		},
		SurvivalCostPoints: map[model.Level]int{
			model.LevelLow:    -1,
			model.LevelMedium: 0,
			model.LevelHigh:   1,
		},
		SurvivalAreaPoints: map[model.AreaType]int{
			model.AreaResidential:    -1,
			model.AreaMixed:          0,
			model.AreaCommercialCore: 1,
			model.AreaIsolated:       1,
		},
		EstimateLowMax:  -1,
		EstimateHighMin: 2,

		AnchorThresholdM: 500,
		AnchorAdjacentM:  250,
	}
}

// ValidateConfig checks that a Config is internally consistent.
func ValidateConfig(c Config) error {
	var errs []string

	if c.RadiusM <= 0 {
		errs = append(errs, "radius_m must be > 0")
	}
	if c.SameMediumPerKM2 < 0 || c.SameHighPerKM2 < c.SameMediumPerKM2 {
		errs = append(errs, "same-category density thresholds must satisfy 0 <= medium <= high")
	}
	if c.TotalMediumPerKM2 < 0 || c.TotalHighPerKM2 < c.TotalMediumPerKM2 {
		errs = append(errs, "total density thresholds must satisfy 0 <= medium <= high")
	}
	if !(c.TrafficLowMin <= c.TrafficMediumMin && c.TrafficMediumMin <= c.TrafficHighMin) {
		errs = append(errs, "traffic thresholds must be ascending")
	}
	for _, a := range model.AreaTypes() {
		p, ok := c.EstimatedPatterns[a]
		if !ok {
			errs = append(errs, fmt.Sprintf("estimated_patterns missing %s", a))
			continue
		}
		if p.Morning < 0 || p.Day < 0 || p.Night < 0 || p.Sum() <= 0 {
			errs = append(errs, fmt.Sprintf("estimated_patterns %s must be non-negative with a positive sum", a))
		}
		if _, ok := c.EstimatedLevels[a]; !ok {
			errs = append(errs, fmt.Sprintf("estimated_levels missing %s", a))
		}
	}
	if c.RentLowMax > c.RentHighMin {
		errs = append(errs, "rent_low_max must be <= rent_high_min")
	}
	if c.DefaultRent < c.RentLowMax || c.DefaultRent >= c.RentHighMin {
		errs = append(errs, "default_rent must fall in the medium band")
	}
	if c.ClosureMediumMin < 0 || c.ClosureHighMin < c.ClosureMediumMin {
		errs = append(errs, "closure thresholds must satisfy 0 <= medium <= high")
	}
	if c.EstimateLowMax >= c.EstimateHighMin {
		errs = append(errs, "estimate_low_max must be < estimate_high_min")
	}
	if c.AnchorThresholdM <= 0 {
		errs = append(errs, "anchor_threshold_m must be > 0")
	}
	if c.AnchorAdjacentM < 0 || c.AnchorAdjacentM > c.AnchorThresholdM {
		errs = append(errs, "anchor_adjacent_m must be between 0 and anchor_threshold_m")
	}

	if len(errs) > 0 {
		return eris.Errorf("metric: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
