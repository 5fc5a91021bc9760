// Package category holds the immutable business category registry.
package category

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/siterisk/internal/model"
)

//go:embed categories.yaml
var defaultRegistry []byte

// WeightTolerance bounds how far a weight profile may stray from 1.0.
const WeightTolerance = 0.01

// Weights maps each metric dimension to its share of the composite score.
type Weights map[model.Dimension]float64

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// Category is one registry entry.
type Category struct {
	Key            string          `yaml:"key" json:"key"`
	Name           string          `yaml:"name" json:"name"`
	Group          string          `yaml:"group" json:"group"`
	Weights        Weights         `yaml:"weights" json:"weights"`
	InverseTraffic bool            `yaml:"inverse_traffic" json:"inverse_traffic"`
	PeakTime       model.TimeOfDay `yaml:"peak_time" json:"peak_time"`
}

// Registry is a read-only category lookup. Build it with Default or Load.
type Registry struct {
	byKey map[string]Category
	keys  []string
}

type registryFile struct {
	Categories []Category `yaml:"categories"`
}

// Default returns the built-in registry.
func Default() (*Registry, error) {
	return Parse(defaultRegistry)
}

// Load reads a registry from a YAML file. An empty path returns Default.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "category: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML registry document.
func Parse(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "category: decode registry")
	}
	return New(f.Categories)
}

// New validates categories and builds a Registry.
func New(cats []Category) (*Registry, error) {
	if len(cats) == 0 {
		return nil, eris.New("category: registry is empty")
	}
	r := &Registry{byKey: make(map[string]Category, len(cats))}
	var errs []string
	for _, c := range cats {
		c.Key = strings.TrimSpace(c.Key)
		if c.Key == "" {
			errs = append(errs, "category with empty key")
			continue
		}
		if _, dup := r.byKey[c.Key]; dup {
			errs = append(errs, fmt.Sprintf("%s: duplicate key", c.Key))
			continue
		}
		if err := validateWeights(c.Weights); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", c.Key, err))
			continue
		}
		if c.PeakTime == "" {
			c.PeakTime = model.TimeDay
		}
		if c.Name == "" {
			c.Name = c.Key
		}
		r.byKey[c.Key] = c
		r.keys = append(r.keys, c.Key)
	}
	if len(errs) > 0 {
		return nil, eris.Errorf("category: invalid registry: %s", strings.Join(errs, "; "))
	}
	sort.Strings(r.keys)
	return r, nil
}

func validateWeights(w Weights) error {
	for _, d := range model.Dimensions() {
		v, ok := w[d]
		if !ok {
			return eris.Errorf("missing %s weight", d)
		}
		if v < 0 {
			return eris.Errorf("%s weight must be >= 0", d)
		}
	}
	if len(w) != len(model.Dimensions()) {
		return eris.New("unknown weight dimension")
	}
	if sum := w.Sum(); math.Abs(sum-1) > WeightTolerance {
		return eris.Errorf("weights should sum to 1.0, got %.3f", sum)
	}
	return nil
}

// Get returns the category for key.
func (r *Registry) Get(key string) (Category, bool) {
	c, ok := r.byKey[key]
	return c, ok
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	_, ok := r.byKey[key]
	return ok
}

// Keys returns every key in sorted order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.keys...)
}

// All returns every category sorted by key.
func (r *Registry) All() []Category {
	out := make([]Category, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, r.byKey[k])
	}
	return out
}

// KeysInGroups returns the sorted keys of categories in any of groups.
func (r *Registry) KeysInGroups(groups ...string) []string {
	want := make(map[string]bool, len(groups))
	for _, g := range groups {
		want[g] = true
	}
	var out []string
	for _, k := range r.keys {
		if want[r.byKey[k].Group] {
			out = append(out, k)
		}
	}
	return out
}
