// Package risk combines the five metric sub-scores into a bounded risk score
// and a level band.
package risk

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siterisk/internal/model"
)

// MaxAdjustment bounds the area-type adjustment in either direction.
const MaxAdjustment = 15.0

// Config holds the bucket-to-sub-score maps, the area adjustments and the
// level bands. Sub-scores run 0-100, higher is riskier.
type Config struct {
	Competition map[model.Level]float64     `yaml:"competition"`
	Traffic     map[model.Level]float64     `yaml:"traffic"`
	Cost        map[model.Level]float64     `yaml:"cost"`
	Survival    map[model.Level]float64     `yaml:"survival"`
	Anchor      map[model.Proximity]float64 `yaml:"anchor"`

	AreaAdjustment map[model.AreaType]float64 `yaml:"area_adjustment"`

	// Lower bounds of the MEDIUM, HIGH and VERY_HIGH bands.
	MediumMin   float64 `yaml:"medium_min"`
	HighMin     float64 `yaml:"high_min"`
	VeryHighMin float64 `yaml:"very_high_min"`
}

// DefaultConfig returns the reference mapping.
func DefaultConfig() Config {
	return Config{
		Competition: map[model.Level]float64{
			model.LevelLow:    20,
			model.LevelMedium: 50,
			model.LevelHigh:   85,
		},
		// Quiet streets are risky for most categories.
		Traffic: map[model.Level]float64{
			model.LevelVeryLow: 85,
			model.LevelLow:     65,
			model.LevelMedium:  40,
			model.LevelHigh:    20,
			model.LevelUnknown: 50,
		},
		Cost: map[model.Level]float64{
			model.LevelLow:    20,
			model.LevelMedium: 50,
			model.LevelHigh:   80,
		},
		Survival: map[model.Level]float64{
			model.LevelLow:    20,
			model.LevelMedium: 50,
			model.LevelHigh:   80,
		},
		Anchor: map[model.Proximity]float64{
			model.ProximityAdjacent: 15,
			model.ProximityNear:     35,
			model.ProximityNone:     65,
		},
		AreaAdjustment: map[model.AreaType]float64{
			model.AreaCommercialCore: 5,
			model.AreaIsolated:       10,
			model.AreaResidential:    -3,
			model.AreaMixed:          0,
		},
		MediumMin:   25,
		HighMin:     50,
		VeryHighMin: 75,
	}
}

// ValidateConfig checks that a Config is internally consistent.
func ValidateConfig(c Config) error {
	var errs []string

	levelMaps := []struct {
		name string
		m    map[model.Level]float64
	}{
		{"competition", c.Competition},
		{"traffic", c.Traffic},
		{"cost", c.Cost},
		{"survival", c.Survival},
	}
	for _, lm := range levelMaps {
		for _, l := range []model.Level{model.LevelLow, model.LevelMedium, model.LevelHigh} {
			if _, ok := lm.m[l]; !ok {
				errs = append(errs, fmt.Sprintf("%s sub-score missing %s", lm.name, l))
			}
		}
		for _, l := range slices.Sorted(maps.Keys(lm.m)) {
			if v := lm.m[l]; v < 0 || v > 100 {
				errs = append(errs, fmt.Sprintf("%s sub-score %s must be between 0 and 100", lm.name, l))
			}
		}
	}
	for _, l := range []model.Level{model.LevelVeryLow, model.LevelUnknown} {
		if _, ok := c.Traffic[l]; !ok {
			errs = append(errs, fmt.Sprintf("traffic sub-score missing %s", l))
		}
	}
	for _, p := range []model.Proximity{model.ProximityAdjacent, model.ProximityNear, model.ProximityNone} {
		v, ok := c.Anchor[p]
		if !ok {
			errs = append(errs, fmt.Sprintf("anchor sub-score missing %s", p))
			continue
		}
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Sprintf("anchor sub-score %s must be between 0 and 100", p))
		}
	}
	for _, a := range slices.Sorted(maps.Keys(c.AreaAdjustment)) {
		if math.Abs(c.AreaAdjustment[a]) > MaxAdjustment {
			errs = append(errs, fmt.Sprintf("area_adjustment %s must be within +/-%.0f", a, MaxAdjustment))
		}
	}
	if !(0 < c.MediumMin && c.MediumMin < c.HighMin && c.HighMin < c.VeryHighMin && c.VeryHighMin <= 100) {
		errs = append(errs, "level bands must satisfy 0 < medium_min < high_min < very_high_min <= 100")
	}

	if len(errs) > 0 {
		return eris.Errorf("risk: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
