package metric

import (
	"math"

	"github.com/sells-group/siterisk/internal/aggregate"
	"github.com/sells-group/siterisk/internal/gridstore"
	"github.com/sells-group/siterisk/internal/model"
	"github.com/sells-group/siterisk/internal/spatial"
	"github.com/sells-group/siterisk/pkg/anchor"
)

// Competition describes same-category and overall store density.
type Competition struct {
	SameCategory    int         `json:"same_category"`
	Total           int         `json:"total"`
	RadiusM         float64     `json:"radius_m"`
	SameDensityKM2  float64     `json:"same_density_km2"`
	TotalDensityKM2 float64     `json:"total_density_km2"`
	Level           model.Level `json:"level"`
	TotalLevel      model.Level `json:"total_level"`
}

// Traffic describes floating population volume and timing.
type Traffic struct {
	Index            float64         `json:"index"`
	HasIndex         bool            `json:"has_index"`
	Level            model.Level     `json:"level"`
	Morning          float64         `json:"morning"`
	Day              float64         `json:"day"`
	Night            float64         `json:"night"`
	Peak             model.TimeOfDay `json:"peak"`
	HasPattern       bool            `json:"has_pattern"`
	WeekendRatio     float64         `json:"weekend_ratio"`
	HasWeekendRatio  bool            `json:"has_weekend_ratio"`
	PatternEstimated bool            `json:"pattern_estimated"`
	LevelEstimated   bool            `json:"level_estimated"`
}

// Cost describes the district rent proxy.
type Cost struct {
	District    string      `json:"district"`
	AverageRent float64     `json:"average_rent"`
	Level       model.Level `json:"level"`
	Defaulted   bool        `json:"defaulted"`
}

// Survival describes business churn. Level is the survival risk.
type Survival struct {
	ClosureRate   float64     `json:"closure_rate"`
	OpeningRate   float64     `json:"opening_rate"`
	NetChange     int         `json:"net_change"`
	Level         model.Level `json:"level"`
	Estimated     bool        `json:"estimated"`
	EstimateScore int         `json:"estimate_score,omitempty"`
}

// Anchor describes the nearest anchor facility within the threshold.
type Anchor struct {
	HasAnchor  bool            `json:"has_anchor"`
	Name       string          `json:"name,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	DistanceM  float64         `json:"distance_m,omitempty"`
	Proximity  model.Proximity `json:"proximity"`
	ThresholdM float64         `json:"threshold_m"`
}

// Bundle is the five calculator outputs for one request.
type Bundle struct {
	Competition Competition `json:"competition"`
	Traffic     Traffic     `json:"traffic"`
	Cost        Cost        `json:"cost"`
	Survival    Survival    `json:"survival"`
	Anchor      Anchor      `json:"anchor"`
}

// Calculator computes metrics under one Config.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a Calculator.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Config returns the calculator's configuration.
func (c *Calculator) Config() Config { return c.cfg }

// Competition counts stores of categoryKey and of every category, and
// buckets both by density over the radius area.
func (c *Calculator) Competition(agg *aggregate.Aggregate, categoryKey string) Competition {
	out := Competition{Level: model.LevelLow, TotalLevel: model.LevelLow, RadiusM: c.cfg.RadiusM}
	if agg == nil {
		return out
	}
	out.SameCategory = agg.Counts[categoryKey]
	out.Total = agg.TotalStores

	area := spatial.AreaKM2(c.cfg.RadiusM)
	if area > 0 {
		out.SameDensityKM2 = float64(out.SameCategory) / area
		out.TotalDensityKM2 = float64(out.Total) / area
	}
	out.Level = densityLevel(out.SameDensityKM2, c.cfg.SameMediumPerKM2, c.cfg.SameHighPerKM2)
	out.TotalLevel = densityLevel(out.TotalDensityKM2, c.cfg.TotalMediumPerKM2, c.cfg.TotalHighPerKM2)
	return out
}

func densityLevel(d, medium, high float64) model.Level {
	switch {
	case d >= high:
		return model.LevelHigh
	case d >= medium:
		return model.LevelMedium
	default:
		return model.LevelLow
	}
}

// Traffic derives the observed traffic metric. Without an index the level
// is unknown until EstimateTrafficPattern runs.
func (c *Calculator) Traffic(agg *aggregate.Aggregate) Traffic {
	out := Traffic{
		Level:   model.LevelUnknown,
		Morning: gridstore.PlaceholderMorning,
		Day:     gridstore.PlaceholderDay,
		Night:   gridstore.PlaceholderNight,
	}
	if agg != nil {
		out.Morning, out.Day, out.Night = agg.Morning, agg.Day, agg.Night
		out.HasPattern = agg.HasRealPattern
		if agg.HasTrafficIndex {
			out.Index = agg.TrafficIndex
			out.HasIndex = true
			out.Level = c.TrafficLevel(agg.TrafficIndex)
		}
		if agg.HasWeekendRatio {
			out.WeekendRatio = agg.WeekendRatio
			out.HasWeekendRatio = true
		}
	}
	out.Peak = Peak(out.Morning, out.Day, out.Night)
	return out
}

// TrafficLevel buckets a traffic index.
func (c *Calculator) TrafficLevel(index float64) model.Level {
	switch {
	case index >= c.cfg.TrafficHighMin:
		return model.LevelHigh
	case index >= c.cfg.TrafficMediumMin:
		return model.LevelMedium
	case index >= c.cfg.TrafficLowMin:
		return model.LevelLow
	default:
		return model.LevelVeryLow
	}
}

// Peak returns the bucket with the largest share. Ties resolve to the
// earlier bucket in morning, day, night order.
func Peak(morning, day, night float64) model.TimeOfDay {
	peak, best := model.TimeMorning, morning
	if day > best {
		peak, best = model.TimeDay, day
	}
	if night > best {
		peak = model.TimeNight
	}
	return peak
}

// EstimateTrafficPattern patches a provisional traffic metric once the area
// type is known. The pattern is replaced only when no real pattern was merged
// and the triple is exactly the placeholder; any other triple passes through
// unchanged. A missing index gets an estimated level.
func (c *Calculator) EstimateTrafficPattern(t Traffic, area model.AreaType, proximity model.Proximity) Traffic {
	nearAnchor := proximity == model.ProximityAdjacent || proximity == model.ProximityNear

	if !t.HasPattern && gridstore.IsPlaceholderTriple(t.Morning, t.Day, t.Night) {
		p := c.cfg.EstimatedPatterns[area]
		if nearAnchor {
			p.Morning += c.cfg.AnchorShift.Morning
			p.Day += c.cfg.AnchorShift.Day
			p.Night += c.cfg.AnchorShift.Night
		}
		p = clampPattern(p)
		if sum := p.Sum(); sum > 0 {
			t.Morning = p.Morning * 100 / sum
			t.Day = p.Day * 100 / sum
			t.Night = p.Night * 100 / sum
			t.Peak = Peak(t.Morning, t.Day, t.Night)
			t.PatternEstimated = true
		}
	}

	if !t.HasIndex {
		level, ok := c.cfg.EstimatedLevels[area]
		if !ok {
			level = model.LevelMedium
		}
		if nearAnchor {
			level = stepUp(level)
		}
		t.Level = level
		t.LevelEstimated = true
	}
	return t
}

func clampPattern(p Pattern) Pattern {
	p.Morning = math.Max(0, p.Morning)
	p.Day = math.Max(0, p.Day)
	p.Night = math.Max(0, p.Night)
	return p
}

func stepUp(l model.Level) model.Level {
	switch l {
	case model.LevelVeryLow:
		return model.LevelLow
	case model.LevelLow:
		return model.LevelMedium
	case model.LevelMedium, model.LevelHigh:
		return model.LevelHigh
	default:
		return l
	}
}

// Cost buckets the district rent. A missing rent uses DefaultRent and is
// flagged as defaulted.
func (c *Calculator) Cost(district string, rent float64, found bool) Cost {
	out := Cost{District: district, AverageRent: rent}
	if !found || rent < 0 || math.IsNaN(rent) {
		out.AverageRent = c.cfg.DefaultRent
		out.Defaulted = true
	}
	switch {
	case out.AverageRent >= c.cfg.RentHighMin:
		out.Level = model.LevelHigh
	case out.AverageRent < c.cfg.RentLowMax:
		out.Level = model.LevelLow
	default:
		out.Level = model.LevelMedium
	}
	return out
}

// Survival computes the data-backed survival metric. ok is false when the
// aggregate carries no usable churn; the caller then estimates.
//
// Rates divide by the churn base of the same cells that reported the churn.
func (c *Calculator) Survival(agg *aggregate.Aggregate) (Survival, bool) {
	if agg == nil || !agg.HasChurn {
		return Survival{}, false
	}
	denom := agg.ChurnBase
	if denom <= 0 {
		return Survival{}, false
	}

	out := Survival{
		ClosureRate: float64(agg.Closures) / float64(denom),
		OpeningRate: float64(agg.Openings) / float64(denom),
		NetChange:   agg.Openings - agg.Closures,
	}
	switch {
	case out.ClosureRate >= c.cfg.ClosureHighMin:
		out.Level = model.LevelHigh
	case out.ClosureRate >= c.cfg.ClosureMediumMin:
		out.Level = model.LevelMedium
	default:
		out.Level = model.LevelLow
	}
	return out, true
}

// EstimateSurvival scores survival risk from the final traffic level, the
// cost level and the area type using the point table. Higher points mean
// higher risk.
func (c *Calculator) EstimateSurvival(traffic, cost model.Level, area model.AreaType) Survival {
	points := c.cfg.SurvivalTrafficPoints[traffic] +
		c.cfg.SurvivalCostPoints[cost] +
		c.cfg.SurvivalAreaPoints[area]

	out := Survival{Estimated: true, EstimateScore: points}
	switch {
	case points <= c.cfg.EstimateLowMax:
		out.Level = model.LevelLow
	case points >= c.cfg.EstimateHighMin:
		out.Level = model.LevelHigh
	default:
		out.Level = model.LevelMedium
	}
	return out
}

// Anchor reports the facility when it lies within the threshold.
func (c *Calculator) Anchor(f *anchor.Facility) Anchor {
	if f == nil || f.DistanceM < 0 || f.DistanceM > c.cfg.AnchorThresholdM {
		return Anchor{Proximity: model.ProximityNone, ThresholdM: c.cfg.AnchorThresholdM}
	}
	out := Anchor{
		HasAnchor:  true,
		Name:       f.Name,
		Kind:       f.Kind,
		DistanceM:  math.Round(f.DistanceM),
		Proximity:  model.ProximityNear,
		ThresholdM: c.cfg.AnchorThresholdM,
	}
	if f.DistanceM <= c.cfg.AnchorAdjacentM {
		out.Proximity = model.ProximityAdjacent
	}
	return out
}
