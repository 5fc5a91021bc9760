// Package aggregate merges per-cell grid records into radius-level totals.
package aggregate

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/siterisk/internal/gridstore"
)

// Aggregate is the merged view of every requested cell.
//
// The traffic index is the simple arithmetic mean over cells that report an
// index. Time-of-day shares are the mean over cells with a real pattern;
// when no cell has one the placeholder triple is returned unchanged.
type Aggregate struct {
	CellsRequested int `json:"cells_requested"`

	// Store counts.
	StoreCells  int            `json:"store_cells"`
	Counts      map[string]int `json:"counts"`
	TotalStores int            `json:"total_stores"`

	// Churn, summed over the cells that report it. ChurnBase is the matching
	// denominator: each churn cell's previous-period count, or its current
	// total when none was recorded.
	HasChurn   bool `json:"has_churn"`
	ChurnCells int  `json:"churn_cells"`
	Closures   int  `json:"closures"`
	Openings   int  `json:"openings"`
	ChurnBase  int  `json:"churn_base"`

	// Traffic.
	TrafficCells     int     `json:"traffic_cells"`
	RealTrafficCells int     `json:"real_traffic_cells"`
	HasRealPattern   bool    `json:"has_real_pattern"`
	HasTrafficIndex  bool    `json:"has_traffic_index"`
	TrafficIndex     float64 `json:"traffic_index"`
	Morning          float64 `json:"morning"`
	Day              float64 `json:"day"`
	Night            float64 `json:"night"`
	HasWeekendRatio  bool    `json:"has_weekend_ratio"`
	WeekendRatio     float64 `json:"weekend_ratio"`

	// Coverage and upstream state.
	StoreCoverage      float64 `json:"store_coverage"`
	TrafficCoverage    float64 `json:"traffic_coverage"`
	StoreUnavailable   bool    `json:"store_unavailable"`
	TrafficUnavailable bool    `json:"traffic_unavailable"`
}

// PatternIsPlaceholder reports whether the merged triple is the placeholder
// substituted for missing data. Real shares that happen to average to
// 33/34/33 are not.
func (a *Aggregate) PatternIsPlaceholder() bool {
	return !a.HasRealPattern && gridstore.IsPlaceholderTriple(a.Morning, a.Day, a.Night)
}

// Aggregator fetches and merges grid records.
type Aggregator struct {
	reader gridstore.Reader
}

// New creates an Aggregator. A nil reader yields all-empty aggregates.
func New(reader gridstore.Reader) *Aggregator {
	return &Aggregator{reader: reader}
}

// Aggregate fetches store and traffic records for cells concurrently and
// merges them. Reader failures are logged and surface as unavailable flags;
// the only error is an empty cell set.
func (a *Aggregator) Aggregate(ctx context.Context, cells []string) (*Aggregate, error) {
	if len(cells) == 0 {
		return nil, eris.New("aggregate: empty cell set")
	}

	var (
		stores  []gridstore.StoreRecord
		traffic []gridstore.TrafficRecord
		out     = &Aggregate{CellsRequested: len(cells), Counts: map[string]int{}}
	)

	if a.reader == nil {
		out.StoreUnavailable = true
		out.TrafficUnavailable = true
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			recs, err := a.reader.StoreRecords(gctx, cells)
			if err != nil {
				zap.L().Warn("aggregate: store records unavailable", zap.Int("cells", len(cells)), zap.Error(err))
				out.StoreUnavailable = true
				return nil
			}
			stores = recs
			return nil
		})
		g.Go(func() error {
			recs, err := a.reader.TrafficRecords(gctx, cells)
			if err != nil {
				zap.L().Warn("aggregate: traffic records unavailable", zap.Int("cells", len(cells)), zap.Error(err))
				out.TrafficUnavailable = true
				return nil
			}
			traffic = recs
			return nil
		})
		_ = g.Wait()
	}

	requested := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		requested[c] = struct{}{}
	}
	out.CellsRequested = len(requested)

	mergeStores(out, stores, requested)
	mergeTraffic(out, traffic, requested)

	out.StoreCoverage = ratio(out.StoreCells, out.CellsRequested)
	out.TrafficCoverage = ratio(out.RealTrafficCells, out.CellsRequested)

	zap.L().Debug("aggregate: merged grid records",
		zap.Int("cells", out.CellsRequested),
		zap.Int("store_cells", out.StoreCells),
		zap.Int("traffic_cells", out.TrafficCells),
		zap.Float64("store_coverage", out.StoreCoverage),
		zap.Float64("traffic_coverage", out.TrafficCoverage),
	)
	return out, nil
}

func mergeStores(out *Aggregate, recs []gridstore.StoreRecord, requested map[string]struct{}) {
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if _, ok := requested[r.CellID]; !ok {
			continue
		}
		if _, dup := seen[r.CellID]; dup {
			continue
		}
		seen[r.CellID] = struct{}{}
		out.StoreCells++

		for cat, n := range r.Counts {
			if n > 0 {
				out.Counts[cat] += n
			}
		}
		out.TotalStores += r.Total()

		if !r.HasChurn() {
			continue
		}
		out.ChurnCells++
		out.Closures += r.Closures()
		out.Openings += r.Openings()
		out.ChurnBase += r.ChurnBase()
	}
	out.HasChurn = out.ChurnCells > 0
}

func mergeTraffic(out *Aggregate, recs []gridstore.TrafficRecord, requested map[string]struct{}) {
	var (
		indexSum, weekendSum         float64
		indexN, weekendN             int
		morning, day, night, pattern float64
	)
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if _, ok := requested[r.CellID]; !ok {
			continue
		}
		if _, dup := seen[r.CellID]; dup {
			continue
		}
		seen[r.CellID] = struct{}{}
		out.TrafficCells++

		hasData := false
		if r.Index != nil {
			indexSum += *r.Index
			indexN++
			hasData = true
		}
		if !r.IsPlaceholder() && r.Morning+r.Day+r.Night > 0 {
			morning += r.Morning
			day += r.Day
			night += r.Night
			pattern++
			hasData = true
			if r.WeekendRatio != nil {
				weekendSum += *r.WeekendRatio
				weekendN++
			}
		}
		if hasData {
			out.RealTrafficCells++
		}
	}

	if indexN > 0 {
		out.HasTrafficIndex = true
		out.TrafficIndex = indexSum / float64(indexN)
	}
	if weekendN > 0 {
		out.HasWeekendRatio = true
		out.WeekendRatio = weekendSum / float64(weekendN)
	}
	if pattern == 0 {
		out.Morning = gridstore.PlaceholderMorning
		out.Day = gridstore.PlaceholderDay
		out.Night = gridstore.PlaceholderNight
		return
	}
	out.HasRealPattern = true
	out.Morning, out.Day, out.Night = normalize(morning/pattern, day/pattern, night/pattern)
}

// normalize rescales a triple to sum to 100.
func normalize(m, d, n float64) (float64, float64, float64) {
	sum := m + d + n
	if sum <= 0 {
		return m, d, n
	}
	return m * 100 / sum, d * 100 / sum, n * 100 / sum
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
