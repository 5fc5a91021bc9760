// Package interpret fills narrative templates from a scored location.
package interpret

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/siterisk/internal/category"
	"github.com/sells-group/siterisk/internal/metric"
	"github.com/sells-group/siterisk/internal/model"
	"github.com/sells-group/siterisk/internal/risk"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Wildcard matches any category, area or bucket in a template key.
const Wildcard = "*"

// TemplateSet is the raw template text keyed by lookup key.
type TemplateSet struct {
	Summaries map[string]string `yaml:"summaries"`
	Details   map[string]string `yaml:"details"`
}

// Input is what the engine needs to write an interpretation.
type Input struct {
	Category category.Category
	Level    risk.Level
	Area     model.AreaType
	Score    float64
	Metrics  metric.Bundle
}

// Interpretation is the filled narrative.
type Interpretation struct {
	Summary     string                     `json:"summary"`
	Details     map[model.Dimension]string `json:"details"`
	TemplateKey string                     `json:"template_key"`
}

// Engine holds parsed templates. It is safe for concurrent use.
type Engine struct {
	summaries map[string]*template.Template
	details   map[string]*template.Template
}

// Default returns an engine over the built-in templates.
func Default() (*Engine, error) {
	return Parse(defaultTemplates)
}

// Load reads templates from a YAML file. An empty path returns Default.
func Load(path string) (*Engine, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "interpret: read %s", path)
	}
	return Parse(data)
}

// Parse builds an engine from YAML template text.
func Parse(data []byte) (*Engine, error) {
	var set TemplateSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, eris.Wrap(err, "interpret: parse templates")
	}
	return New(set)
}

// New compiles a TemplateSet. Every risk level needs a generic summary so
// the lookup chain always ends somewhere.
func New(set TemplateSet) (*Engine, error) {
	e := &Engine{
		summaries: make(map[string]*template.Template, len(set.Summaries)),
		details:   make(map[string]*template.Template, len(set.Details)),
	}
	for k, text := range set.Summaries {
		t, err := compile(k, text)
		if err != nil {
			return nil, err
		}
		e.summaries[k] = t
	}
	for k, text := range set.Details {
		t, err := compile(k, text)
		if err != nil {
			return nil, err
		}
		e.details[k] = t
	}

	var missing []string
	for _, l := range []risk.Level{risk.LevelLow, risk.LevelMedium, risk.LevelHigh, risk.LevelVeryHigh} {
		if _, ok := e.summaries[Key(Wildcard, string(l), Wildcard)]; !ok {
			missing = append(missing, string(l))
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("interpret: missing generic summary for %s", strings.Join(missing, ", "))
	}
	return e, nil
}

func compile(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(strings.TrimSpace(text))
	if err != nil {
		return nil, eris.Wrapf(err, "interpret: compile %q", name)
	}
	// Dry run against empty data so unknown fields fail at load time.
	if _, err := render(t, view{}); err != nil {
		return nil, err
	}
	return t, nil
}

// Key joins the three parts of a summary key.
func Key(categoryKey, level, area string) string {
	return categoryKey + "|" + level + "|" + area
}

// SummaryChain returns the lookup keys in the order they are tried.
func SummaryChain(categoryKey string, level risk.Level, area model.AreaType) []string {
	l := string(level)
	return []string{
		Key(categoryKey, l, string(area)),
		Key(categoryKey, l, Wildcard),
		Key(Wildcard, l, string(area)),
		Key(Wildcard, l, Wildcard),
	}
}

// Interpret selects and fills the summary and per-dimension details.
func (e *Engine) Interpret(in Input) (Interpretation, error) {
	data := newView(in)

	var (
		tmpl *template.Template
		key  string
	)
	for _, k := range SummaryChain(in.Category.Key, in.Level, in.Area) {
		if t, ok := e.summaries[k]; ok {
			tmpl, key = t, k
			break
		}
	}
	if tmpl == nil {
		return Interpretation{}, eris.Errorf("interpret: no summary for level %q", in.Level)
	}
	summary, err := render(tmpl, data)
	if err != nil {
		return Interpretation{}, err
	}

	out := Interpretation{
		Summary:     summary,
		Details:     make(map[model.Dimension]string, 5),
		TemplateKey: key,
	}
	for _, d := range model.Dimensions() {
		t := e.detail(d, bucket(d, in.Metrics))
		if t == nil {
			continue
		}
		s, err := render(t, data)
		if err != nil {
			return Interpretation{}, err
		}
		out.Details[d] = s
	}
	return out, nil
}

func (e *Engine) detail(d model.Dimension, b string) *template.Template {
	if t, ok := e.details[string(d)+"|"+b]; ok {
		return t
	}
	return e.details[string(d)+"|"+Wildcard]
}

func bucket(d model.Dimension, b metric.Bundle) string {
	switch d {
	case model.DimCompetition:
		return string(b.Competition.Level)
	case model.DimTraffic:
		return string(b.Traffic.Level)
	case model.DimCost:
		return string(b.Cost.Level)
	case model.DimSurvival:
		return string(b.Survival.Level)
	case model.DimAnchor:
		return string(b.Anchor.Proximity)
	}
	return Wildcard
}

func render(t *template.Template, data view) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", eris.Wrapf(err, "interpret: render %q", t.Name())
	}
	return strings.Join(strings.Fields(buf.String()), " "), nil
}

// view is the flat, preformatted template data.
type view struct {
	Category  string
	Level     string
	Area      string
	AreaLabel string
	Score     string

	SameCategory int
	TotalStores  int
	Radius       string

	TrafficLevel     string
	TrafficEstimated bool
	Morning          string
	Day              string
	Night            string
	Peak             string

	District      string
	Rent          string
	CostLevel     string
	CostDefaulted bool

	SurvivalLevel     string
	SurvivalEstimated bool
	ClosureRate       string
	NetChange         int

	HasAnchor       bool
	AnchorName      string
	AnchorDistance  string
	AnchorThreshold string
}

func newView(in Input) view {
	m := in.Metrics
	name := in.Category.Name
	if name == "" {
		name = in.Category.Key
	}
	return view{
		Category:  name,
		Level:     string(in.Level),
		Area:      string(in.Area),
		AreaLabel: strings.ReplaceAll(string(in.Area), "_", " "),
		Score:     fmt.Sprintf("%.1f", in.Score),

		SameCategory: m.Competition.SameCategory,
		TotalStores:  m.Competition.Total,
		Radius:       fmt.Sprintf("%.0f", m.Competition.RadiusM),

		TrafficLevel:     levelLabel(m.Traffic.Level),
		TrafficEstimated: m.Traffic.PatternEstimated || m.Traffic.LevelEstimated,
		Morning:          fmt.Sprintf("%.0f", m.Traffic.Morning),
		Day:              fmt.Sprintf("%.0f", m.Traffic.Day),
		Night:            fmt.Sprintf("%.0f", m.Traffic.Night),
		Peak:             string(m.Traffic.Peak),

		District:      m.Cost.District,
		Rent:          fmt.Sprintf("%.1f", m.Cost.AverageRent),
		CostLevel:     levelLabel(m.Cost.Level),
		CostDefaulted: m.Cost.Defaulted,

		SurvivalLevel:     levelLabel(m.Survival.Level),
		SurvivalEstimated: m.Survival.Estimated,
		ClosureRate:       fmt.Sprintf("%.1f", m.Survival.ClosureRate*100),
		NetChange:         m.Survival.NetChange,

		HasAnchor:       m.Anchor.HasAnchor,
		AnchorName:      m.Anchor.Name,
		AnchorDistance:  fmt.Sprintf("%.0f", m.Anchor.DistanceM),
		AnchorThreshold: fmt.Sprintf("%.0f", m.Anchor.ThresholdM),
	}
}

func levelLabel(l model.Level) string {
	if l == "" {
		return string(model.LevelUnknown)
	}
	return strings.ReplaceAll(string(l), "_", " ")
}
