package analysis

import (
	"time"

	"github.com/sells-group/siterisk/internal/area"
	"github.com/sells-group/siterisk/internal/category"
	"github.com/sells-group/siterisk/internal/interpret"
	"github.com/sells-group/siterisk/internal/metric"
	"github.com/sells-group/siterisk/internal/model"
	"github.com/sells-group/siterisk/internal/risk"
	"github.com/sells-group/siterisk/internal/riskcard"
)

// Result is the full analysis output.
type Result struct {
	ID             string                   `json:"id"`
	Location       Location                 `json:"location"`
	Category       category.Category        `json:"category"`
	Summary        Summary                  `json:"summary"`
	Area           area.Decision            `json:"area"`
	Metrics        metric.Bundle            `json:"metrics"`
	Interpretation interpret.Interpretation `json:"interpretation"`
	RiskCards      []riskcard.Card          `json:"risk_cards"`
	DataQuality    DataQuality              `json:"data_quality"`
	Cells          []string                 `json:"cells"`
	GeneratedAt    time.Time                `json:"generated_at"`
}

// Location is the analyzed point and what was resolved about it.
type Location struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Cell     string  `json:"cell"`
	Address  string  `json:"address,omitempty"`
	Region   string  `json:"region,omitempty"`
	District string  `json:"district,omitempty"`
}

// Summary is the headline score.
type Summary struct {
	Score      float64        `json:"score"`
	Level      risk.Level     `json:"level"`
	AreaType   model.AreaType `json:"area_type"`
	SubScores  risk.SubScores `json:"sub_scores"`
	Adjustment float64        `json:"adjustment"`
}

// DataQuality reports coverage and every fallback taken.
type DataQuality struct {
	CellsRequested        int      `json:"cells_requested"`
	StoreCoverage         float64  `json:"store_coverage"`
	TrafficCoverage       float64  `json:"traffic_coverage"`
	StoreUnavailable      bool     `json:"store_unavailable"`
	TrafficUnavailable    bool     `json:"traffic_unavailable"`
	TrafficEstimated      bool     `json:"traffic_estimated"`
	TrafficLevelEstimated bool     `json:"traffic_level_estimated"`
	SurvivalEstimated     bool     `json:"survival_estimated"`
	CostDefaulted         bool     `json:"cost_defaulted"`
	AnchorAvailable       bool     `json:"anchor_available"`
	GeocodeAvailable      bool     `json:"geocode_available"`
	Warnings              []string `json:"warnings"`
}

// Warning texts.
const (
	WarnStoreUnavailable   = "store data unavailable"
	WarnTrafficUnavailable = "traffic data unavailable"
	WarnNoStoreCoverage    = "no store records in the analysis radius"
	WarnTrafficPattern     = "time-of-day pattern estimated from area type"
	WarnTrafficLevel       = "traffic level estimated from area type"
	WarnSurvival           = "survival risk estimated; no closure history"
	WarnRentDefault        = "district rent unavailable; default rent used"
	WarnAnchorUnavailable  = "anchor lookup unavailable"
	WarnGeocodeUnavailable = "reverse geocode unavailable"
)

func buildDataQuality(up upstream, b metric.Bundle) DataQuality {
	agg := up.agg
	dq := DataQuality{
		CellsRequested:        agg.CellsRequested,
		StoreCoverage:         agg.StoreCoverage,
		TrafficCoverage:       agg.TrafficCoverage,
		StoreUnavailable:      agg.StoreUnavailable,
		TrafficUnavailable:    agg.TrafficUnavailable,
		TrafficEstimated:      b.Traffic.PatternEstimated,
		TrafficLevelEstimated: b.Traffic.LevelEstimated,
		SurvivalEstimated:     b.Survival.Estimated,
		CostDefaulted:         b.Cost.Defaulted,
		AnchorAvailable:       up.anchorOK,
		GeocodeAvailable:      up.geocodeOK,
		Warnings:              []string{},
	}

	warn := func(cond bool, msg string) {
		if cond {
			dq.Warnings = append(dq.Warnings, msg)
		}
	}
	warn(agg.StoreUnavailable, WarnStoreUnavailable)
	warn(agg.TrafficUnavailable, WarnTrafficUnavailable)
	warn(!agg.StoreUnavailable && agg.StoreCells == 0, WarnNoStoreCoverage)
	warn(dq.TrafficEstimated, WarnTrafficPattern)
	warn(dq.TrafficLevelEstimated, WarnTrafficLevel)
	warn(dq.SurvivalEstimated, WarnSurvival)
	warn(dq.CostDefaulted, WarnRentDefault)
	warn(!up.anchorOK, WarnAnchorUnavailable)
	warn(!up.geocodeOK, WarnGeocodeUnavailable)
	return dq
}
