package analysis

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/siterisk/internal/area"
	"github.com/sells-group/siterisk/internal/metric"
	"github.com/sells-group/siterisk/internal/risk"
	"github.com/sells-group/siterisk/internal/riskcard"
)

// Scoring bundles every tunable table used by one analysis.
type Scoring struct {
	Metric metric.Config   `yaml:"metric"`
	Area   area.Config     `yaml:"area"`
	Risk   risk.Config     `yaml:"risk"`
	Cards  riskcard.Config `yaml:"cards"`
}

// DefaultScoring returns the reference tables.
func DefaultScoring() Scoring {
	return Scoring{
		Metric: metric.DefaultConfig(),
		Area:   area.DefaultConfig(),
		Risk:   risk.DefaultConfig(),
		Cards:  riskcard.DefaultConfig(),
	}
}

// LoadScoring overlays a YAML file on the defaults and validates the result.
// Map entries in the file replace single keys; lists replace whole lists.
// An empty path returns the defaults.
func LoadScoring(path string) (Scoring, error) {
	s := DefaultScoring()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Scoring{}, eris.Wrapf(err, "analysis: read scoring file %s", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scoring{}, eris.Wrapf(err, "analysis: parse scoring file %s", path)
	}
	if err := ValidateScoring(s); err != nil {
		return Scoring{}, err
	}
	return s, nil
}

// ValidateScoring validates every table.
func ValidateScoring(s Scoring) error {
	var errs []string
	for _, err := range []error{
		metric.ValidateConfig(s.Metric),
		area.ValidateConfig(s.Area),
		risk.ValidateConfig(s.Risk),
		riskcard.ValidateConfig(s.Cards),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("analysis: scoring validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
