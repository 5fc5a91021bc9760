// Package model holds the enumerations shared by the metric calculators,
// the area classifier, the risk scorer and the explanation layers.
package model

// Level is a discrete bucket for a normalized metric.
type Level string

// Metric levels. Not every metric uses every level: traffic uses all four,
// density/cost/survival use low, medium and high.
const (
	LevelVeryLow Level = "very_low"
	LevelLow     Level = "low"
	LevelMedium  Level = "medium"
	LevelHigh    Level = "high"
	LevelUnknown Level = "unknown"
)

// Rank orders levels from quietest to busiest. Unknown ranks below very_low.
func (l Level) Rank() int {
	switch l {
	case LevelVeryLow:
		return 1
	case LevelLow:
		return 2
	case LevelMedium:
		return 3
	case LevelHigh:
		return 4
	default:
		return 0
	}
}

// AtMost reports whether l ranks no higher than other. Unknown always does.
func (l Level) AtMost(other Level) bool {
	return l.Rank() <= other.Rank()
}

// AreaType is the commercial character of a location.
type AreaType string

// Area types.
const (
	AreaResidential    AreaType = "residential"
	AreaMixed          AreaType = "mixed"
	AreaCommercialCore AreaType = "commercial_core"
	AreaIsolated       AreaType = "isolated"
)

// AreaTypes lists every area type.
func AreaTypes() []AreaType {
	return []AreaType{AreaResidential, AreaMixed, AreaCommercialCore, AreaIsolated}
}

// Valid reports whether a is a known area type.
func (a AreaType) Valid() bool {
	switch a {
	case AreaResidential, AreaMixed, AreaCommercialCore, AreaIsolated:
		return true
	}
	return false
}

// Proximity buckets the distance to the nearest anchor facility.
type Proximity string

// Anchor proximity buckets.
const (
	ProximityAdjacent Proximity = "adjacent"
	ProximityNear     Proximity = "near"
	ProximityNone     Proximity = "none"
)

// TimeOfDay is one of the three traffic share buckets.
type TimeOfDay string

// Time-of-day buckets, in tie-break order.
const (
	TimeMorning TimeOfDay = "morning"
	TimeDay     TimeOfDay = "day"
	TimeNight   TimeOfDay = "night"
)

// Dimension names one of the five metric families.
type Dimension string

// Metric dimensions.
const (
	DimCompetition Dimension = "competition"
	DimTraffic     Dimension = "traffic"
	DimCost        Dimension = "cost"
	DimSurvival    Dimension = "survival"
	DimAnchor      Dimension = "anchor"
)

// Dimensions lists the five dimensions in display order.
func Dimensions() []Dimension {
	return []Dimension{DimCompetition, DimTraffic, DimCost, DimSurvival, DimAnchor}
}
