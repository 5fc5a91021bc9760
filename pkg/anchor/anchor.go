// Package anchor finds the nearest anchor facility (transit stations and
// similar fixed points of interest) around a coordinate.
package anchor

import (
	"context"
	"sort"

	"github.com/sells-group/siterisk/internal/spatial"
)

// Facility is a qualifying anchor point.
type Facility struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	DistanceM float64 `json:"distance_m"`
}

// Finder returns the nearest facility within radiusM of a point, or nil when
// there is none.
type Finder interface {
	Nearest(ctx context.Context, lat, lng, radiusM float64) (*Facility, error)
}

// nearest picks the closest facility within radiusM. Ties go to the lower ID
// so identical inputs always produce the same answer.
func nearest(lat, lng, radiusM float64, facilities []Facility) *Facility {
	type candidate struct {
		f Facility
		d float64
	}
	var cands []candidate
	for _, f := range facilities {
		d := spatial.Haversine(lat, lng, f.Lat, f.Lng)
		if d <= radiusM {
			cands = append(cands, candidate{f: f, d: d})
		}
	}
	if len(cands) == 0 {
		return nil
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].d != cands[j].d {
			return cands[i].d < cands[j].d
		}
		return cands[i].f.ID < cands[j].f.ID
	})
	best := cands[0].f
	best.DistanceM = cands[0].d
	return &best
}

// StaticFinder searches an in-memory facility list.
type StaticFinder struct {
	facilities []Facility
}

// NewStaticFinder creates a StaticFinder over a copy of facilities.
func NewStaticFinder(facilities []Facility) *StaticFinder {
	return &StaticFinder{facilities: append([]Facility(nil), facilities...)}
}

// Nearest implements Finder.
func (s *StaticFinder) Nearest(_ context.Context, lat, lng, radiusM float64) (*Facility, error) {
	return nearest(lat, lng, radiusM, s.facilities), nil
}

// Len returns the number of loaded facilities.
func (s *StaticFinder) Len() int { return len(s.facilities) }
