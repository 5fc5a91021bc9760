package interpret

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siterisk/internal/category"
	"github.com/sells-group/siterisk/internal/metric"
	"github.com/sells-group/siterisk/internal/model"
	"github.com/sells-group/siterisk/internal/risk"
)

func sampleInput(catKey string, level risk.Level, area model.AreaType) Input {
	return Input{
		Category: category.Category{Key: catKey, Name: "Cafe"},
		Level:    level,
		Area:     area,
		Score:    29.5,
		Metrics: metric.Bundle{
			Competition: metric.Competition{SameCategory: 3, Total: 40, RadiusM: 500, Level: model.LevelLow},
			Traffic:     metric.Traffic{Level: model.LevelHigh, Morning: 22, Day: 46, Night: 32, Peak: model.TimeDay, PatternEstimated: true},
			Cost:        metric.Cost{District: "Gangnam-gu", AverageRent: 72.4, Level: model.LevelHigh},
			Survival:    metric.Survival{ClosureRate: 0.125, NetChange: -2, Level: model.LevelHigh},
			Anchor:      metric.Anchor{HasAnchor: true, Name: "Gangnam Station", DistanceM: 180, Proximity: model.ProximityAdjacent},
		},
	}
}

func TestDefault_Loads(t *testing.T) {
	e, err := Default()
	require.NoError(t, err)
	assert.NotEmpty(t, e.summaries)
	assert.NotEmpty(t, e.details)
}

func TestSummaryChain(t *testing.T) {
	assert.Equal(t, []string{
		"cafe|HIGH|isolated",
		"cafe|HIGH|*",
		"*|HIGH|isolated",
		"*|HIGH|*",
	}, SummaryChain("cafe", risk.LevelHigh, model.AreaIsolated))
}

func TestInterpret_FallbackChain(t *testing.T) {
	set := TemplateSet{
		Summaries: map[string]string{
			"*|LOW|*":           "generic low",
			"*|MEDIUM|*":        "generic medium",
			"*|HIGH|*":          "generic high",
			"*|VERY_HIGH|*":     "generic very high",
			"*|HIGH|isolated":   "any isolated high",
			"cafe|HIGH|*":       "cafe high",
			"cafe|HIGH|mixed":   "cafe high mixed",
			"bakery|LOW|mixed":  "bakery low mixed",
			"bakery|LOW|*":      "bakery low",
			"laundry|MEDIUM|*":  "laundry medium",
			"laundry|LOW|mixed": "unused",
		},
	}
	e, err := New(set)
	require.NoError(t, err)

	tests := []struct {
		cat   string
		level risk.Level
		area  model.AreaType
		want  string
		key   string
	}{
		{"cafe", risk.LevelHigh, model.AreaMixed, "cafe high mixed", "cafe|HIGH|mixed"},
		{"cafe", risk.LevelHigh, model.AreaResidential, "cafe high", "cafe|HIGH|*"},
		{"bar", risk.LevelHigh, model.AreaIsolated, "any isolated high", "*|HIGH|isolated"},
		{"bar", risk.LevelHigh, model.AreaMixed, "generic high", "*|HIGH|*"},
		{"unknown_cat", risk.LevelVeryHigh, model.AreaCommercialCore, "generic very high", "*|VERY_HIGH|*"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := e.Interpret(sampleInput(tt.cat, tt.level, tt.area))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Summary)
			assert.Equal(t, tt.key, got.TemplateKey)
		})
	}
}

func TestInterpret_FillsPlaceholders(t *testing.T) {
	e, err := Default()
	require.NoError(t, err)

	got, err := e.Interpret(sampleInput("fitness", risk.LevelMedium, model.AreaCommercialCore))
	require.NoError(t, err)
	assert.Equal(t, "*|MEDIUM|commercial_core", got.TemplateKey)
	assert.Contains(t, got.Summary, "29.5")
	assert.Contains(t, got.Summary, "40 stores")
	assert.NotContains(t, got.Summary, "{{")
	assert.NotContains(t, got.Summary, "\n")

	require.Len(t, got.Details, 5)
	assert.Contains(t, got.Details[model.DimCompetition], "3 same-category stores among 40")
	assert.Contains(t, got.Details[model.DimCompetition], "light")
	assert.Contains(t, got.Details[model.DimTraffic], "(estimated)")
	assert.Contains(t, got.Details[model.DimTraffic], "22% morning, 46% day, 32% night")
	assert.Contains(t, got.Details[model.DimCost], "Gangnam-gu")
	assert.Contains(t, got.Details[model.DimCost], "72.4")
	assert.Contains(t, got.Details[model.DimSurvival], "12.5%")
	assert.Contains(t, got.Details[model.DimAnchor], "Gangnam Station is 180 m away")
}

func TestInterpret_EstimatedSurvivalAndNoAnchor(t *testing.T) {
	e, err := Default()
	require.NoError(t, err)

	in := sampleInput("cafe", risk.LevelLow, model.AreaIsolated)
	in.Metrics.Survival = metric.Survival{Estimated: true, Level: model.LevelMedium}
	in.Metrics.Anchor = metric.Anchor{Proximity: model.ProximityNone, ThresholdM: 500}
	in.Metrics.Cost = metric.Cost{AverageRent: 45, Level: model.LevelMedium, Defaulted: true}

	got, err := e.Interpret(in)
	require.NoError(t, err)
	assert.Contains(t, got.Details[model.DimSurvival], "estimated as medium")
	assert.Contains(t, got.Details[model.DimAnchor], "No station within 500 m")
	assert.Contains(t, got.Details[model.DimCost], "this district")
	assert.Contains(t, got.Details[model.DimCost], "(district default)")
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		set  TemplateSet
		want string
	}{
		{
			name: "missing generic",
			set:  TemplateSet{Summaries: map[string]string{"*|LOW|*": "x"}},
			want: "missing generic summary for MEDIUM, HIGH, VERY_HIGH",
		},
		{
			name: "bad syntax",
			set:  TemplateSet{Summaries: map[string]string{"*|LOW|*": "{{.Score"}},
			want: "compile",
		},
		{
			name: "unknown field",
			set:  TemplateSet{Details: map[string]string{"cost|*": "{{.Nope}}"}},
			want: "render",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.set)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	body := `summaries:
  "*|LOW|*": "low {{.Score}}"
  "*|MEDIUM|*": "medium"
  "*|HIGH|*": "high"
  "*|VERY_HIGH|*": "very high"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	e, err := Load(path)
	require.NoError(t, err)
	got, err := e.Interpret(sampleInput("cafe", risk.LevelLow, model.AreaMixed))
	require.NoError(t, err)
	assert.Equal(t, "low 29.5", got.Summary)
	assert.Empty(t, got.Details)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestInterpret_UsesConfiguredDistances(t *testing.T) {
	e, err := Default()
	require.NoError(t, err)

	in := sampleInput("cafe", risk.LevelMedium, model.AreaMixed)
	in.Metrics.Competition.RadiusM = 750
	in.Metrics.Anchor = metric.Anchor{Proximity: model.ProximityNone, ThresholdM: 300}

	got, err := e.Interpret(in)
	require.NoError(t, err)
	assert.Contains(t, got.Summary, "within 750 m")
	assert.Contains(t, got.Details[model.DimCompetition], "within 750 m")
	assert.Contains(t, got.Details[model.DimAnchor], "No station within 300 m")
	assert.NotContains(t, got.Summary+got.Details[model.DimCompetition]+got.Details[model.DimAnchor], "500 m")
}
