// Package riskcard builds candidate risk statements per metric dimension,
// scores their severity and keeps the most severe one per dimension.
package riskcard

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siterisk/internal/model"
)

// DefaultTopN is the number of cards shown.
const DefaultTopN = 3

// Config holds the safe baselines, severity bands and tie-break order.
type Config struct {
	// Baselines are the sub-score at or below which a dimension is "safe".
	Baselines map[model.Dimension]float64 `yaml:"baselines"`

	CriticalMin float64 `yaml:"critical_min"`
	WarningMin  float64 `yaml:"warning_min"`

	// EstimatedFactor scales severity for cards built on estimated data.
	EstimatedFactor float64 `yaml:"estimated_factor"`

	// Priority lists dimensions from most to least important for ties.
	Priority []model.Dimension `yaml:"priority"`

	TopN int `yaml:"top_n"`
}

// DefaultConfig returns the reference baselines and order.
func DefaultConfig() Config {
	return Config{
		Baselines: map[model.Dimension]float64{
			model.DimCompetition: 35,
			model.DimTraffic:     40,
			model.DimCost:        40,
			model.DimSurvival:    35,
			model.DimAnchor:      40,
		},
		CriticalMin:     70,
		WarningMin:      40,
		EstimatedFactor: 0.8,
		Priority: []model.Dimension{
			model.DimSurvival,
			model.DimCompetition,
			model.DimCost,
			model.DimTraffic,
			model.DimAnchor,
		},
		TopN: DefaultTopN,
	}
}

// ValidateConfig checks that a Config is internally consistent.
func ValidateConfig(c Config) error {
	var errs []string

	seen := map[model.Dimension]bool{}
	for _, d := range c.Priority {
		if seen[d] {
			errs = append(errs, fmt.Sprintf("priority lists %s twice", d))
		}
		seen[d] = true
	}
	for _, d := range model.Dimensions() {
		b, ok := c.Baselines[d]
		if !ok {
			errs = append(errs, fmt.Sprintf("baselines missing %s", d))
		} else if b < 0 || b >= 100 {
			errs = append(errs, fmt.Sprintf("baseline %s must be in [0,100)", d))
		}
		if !seen[d] {
			errs = append(errs, fmt.Sprintf("priority missing %s", d))
		}
	}
	if !(0 < c.WarningMin && c.WarningMin < c.CriticalMin && c.CriticalMin <= 100) {
		errs = append(errs, "severity bands must satisfy 0 < warning_min < critical_min <= 100")
	}
	if c.EstimatedFactor <= 0 || c.EstimatedFactor > 1 {
		errs = append(errs, "estimated_factor must be in (0,1]")
	}
	if c.TopN < 1 {
		errs = append(errs, "top_n must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("riskcard: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
