// Package area assigns exactly one area type to a location.
//
// Rules (every matching rule is collected):
//
//	isolated         few stores, no anchor within the threshold, traffic low or quieter
//	commercial_core  high traffic with many stores, or an adjacent anchor with
//	                 enough stores, or high overall density with at least medium traffic
//	residential      residential-service share of stores at or above the ratio,
//	                 traffic not high
//	mixed            always matches
//
// The highest priority match wins. Equal priorities resolve to the type
// listed first in Precedence. Types missing from Precedence never match.
package area

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siterisk/internal/metric"
	"github.com/sells-group/siterisk/internal/model"
)

// ErrNoAreaType means no rule matched. It signals a configuration bug, not
// a data condition.
var ErrNoAreaType = eris.New("area: no area type matched")

// Config holds the rule thresholds and the priority and precedence tables.
type Config struct {
	IsolatedMaxStores   int                    `yaml:"isolated_max_stores"`
	CoreMinStores       int                    `yaml:"core_min_stores"`
	CoreAnchorMinStores int                    `yaml:"core_anchor_min_stores"`
	ResidentialMinRatio float64                `yaml:"residential_min_ratio"`
	Priorities          map[model.AreaType]int `yaml:"priorities"`
	Precedence          []model.AreaType       `yaml:"precedence"`
}

// DefaultConfig returns the reference tables.
func DefaultConfig() Config {
	return Config{
		IsolatedMaxStores:   5,
		CoreMinStores:       30,
		CoreAnchorMinStores: 20,
		ResidentialMinRatio: 0.35,
		Priorities: map[model.AreaType]int{
			model.AreaIsolated:       30,
			model.AreaCommercialCore: 20,
			model.AreaResidential:    20,
			model.AreaMixed:          0,
		},
		Precedence: []model.AreaType{
			model.AreaIsolated,
			model.AreaCommercialCore,
			model.AreaResidential,
			model.AreaMixed,
		},
	}
}

// ValidateConfig checks that every area type appears exactly once in the
// precedence list and has a priority.
func ValidateConfig(c Config) error {
	var errs []string

	if c.IsolatedMaxStores < 0 || c.CoreMinStores < 0 || c.CoreAnchorMinStores < 0 {
		errs = append(errs, "store thresholds must be >= 0")
	}
	if c.ResidentialMinRatio < 0 || c.ResidentialMinRatio > 1 {
		errs = append(errs, "residential_min_ratio must be between 0 and 1")
	}
	seen := map[model.AreaType]bool{}
	for _, a := range c.Precedence {
		if !a.Valid() {
			errs = append(errs, fmt.Sprintf("precedence has unknown type %q", a))
			continue
		}
		if seen[a] {
			errs = append(errs, fmt.Sprintf("precedence lists %s twice", a))
		}
		seen[a] = true
	}
	for _, a := range model.AreaTypes() {
		if !seen[a] {
			errs = append(errs, fmt.Sprintf("precedence missing %s", a))
		}
		if _, ok := c.Priorities[a]; !ok {
			errs = append(errs, fmt.Sprintf("priorities missing %s", a))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("area: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Input is everything the classifier looks at.
type Input struct {
	Competition metric.Competition
	Traffic     metric.Traffic
	Anchor      metric.Anchor
	Counts      map[string]int
	TotalStores int
}

// Decision is the chosen type plus every rule that matched, in precedence
// order.
type Decision struct {
	Type    model.AreaType   `json:"type"`
	Matched []model.AreaType `json:"matched"`
}

// Classifier is a pure rule evaluator.
type Classifier struct {
	cfg             Config
	residentialKeys map[string]bool
}

// NewClassifier creates a Classifier. residentialKeys are the category keys
// counted as residential services.
func NewClassifier(cfg Config, residentialKeys []string) *Classifier {
	keys := make(map[string]bool, len(residentialKeys))
	for _, k := range residentialKeys {
		keys[k] = true
	}
	return &Classifier{cfg: cfg, residentialKeys: keys}
}

// ResidentialRatio is the share of stores in residential-service categories.
func (c *Classifier) ResidentialRatio(in Input) float64 {
	if in.TotalStores <= 0 {
		return 0
	}
	var n int
	for k, v := range in.Counts {
		if c.residentialKeys[k] && v > 0 {
			n += v
		}
	}
	return float64(n) / float64(in.TotalStores)
}

// Classify returns the area type for in.
func (c *Classifier) Classify(in Input) (Decision, error) {
	var d Decision
	best := 0
	found := false
	for _, a := range c.cfg.Precedence {
		if !c.matches(a, in) {
			continue
		}
		d.Matched = append(d.Matched, a)
		p := c.cfg.Priorities[a]
		// Strictly greater keeps the earlier type on ties.
		if !found || p > best {
			d.Type, best, found = a, p, true
		}
	}
	if !found {
		return Decision{}, eris.Wrapf(ErrNoAreaType, "stores=%d traffic=%s anchor=%s",
			in.TotalStores, in.Traffic.Level, in.Anchor.Proximity)
	}
	return d, nil
}

func (c *Classifier) matches(a model.AreaType, in Input) bool {
	traffic := in.Traffic.Level
	switch a {
	case model.AreaIsolated:
		return in.TotalStores <= c.cfg.IsolatedMaxStores &&
			!in.Anchor.HasAnchor &&
			traffic.AtMost(model.LevelLow)
	case model.AreaCommercialCore:
		return (traffic == model.LevelHigh && in.TotalStores >= c.cfg.CoreMinStores) ||
			(in.Anchor.Proximity == model.ProximityAdjacent && in.TotalStores >= c.cfg.CoreAnchorMinStores) ||
			(in.Competition.TotalLevel == model.LevelHigh && traffic.Rank() >= model.LevelMedium.Rank())
	case model.AreaResidential:
		return in.TotalStores > 0 &&
			c.ResidentialRatio(in) >= c.cfg.ResidentialMinRatio &&
			traffic != model.LevelHigh
	case model.AreaMixed:
		return true
	default:
		return false
	}
}
