// Package analysis orchestrates one risk analysis: validation, spatial
// lookup, the concurrent upstream fan-out, the two-pass metric evaluation,
// scoring and the explanation layers.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/siterisk/internal/aggregate"
	"github.com/sells-group/siterisk/internal/area"
	"github.com/sells-group/siterisk/internal/category"
	"github.com/sells-group/siterisk/internal/gridstore"
	"github.com/sells-group/siterisk/internal/interpret"
	"github.com/sells-group/siterisk/internal/metric"
	"github.com/sells-group/siterisk/internal/monitoring"
	"github.com/sells-group/siterisk/internal/resilience"
	"github.com/sells-group/siterisk/internal/risk"
	"github.com/sells-group/siterisk/internal/riskcard"
	"github.com/sells-group/siterisk/internal/spatial"
	"github.com/sells-group/siterisk/pkg/anchor"
	"github.com/sells-group/siterisk/pkg/geocode"
	"github.com/sells-group/siterisk/pkg/rent"
)

// Upstream collaborator names, used for breakers, logs and metrics.
const (
	SourceGrid    = "grid"
	SourceGeocode = "geocode"
	SourceAnchor  = "anchor"
	SourceRent    = "rent"
)

// ResidentialGroups are the category groups counted as residential services
// by the area classifier.
var ResidentialGroups = []string{"living"}

// Deps are the collaborators of a Service. Grid, Geocoder, Anchors and Rents
// may be nil; the matching data is then treated as missing.
type Deps struct {
	Grid       gridstore.Reader
	Geocoder   geocode.Reverser
	Anchors    anchor.Finder
	Rents      rent.Lookup
	Categories *category.Registry
	Templates  *interpret.Engine
	Breakers   *resilience.Breakers
	Metrics    *monitoring.Metrics
}

// Options tune a Service.
type Options struct {
	Resolution int
	Timeout    time.Duration
	TopCards   int
	Scoring    Scoring
}

// DefaultOptions returns resolution 9, no timeout, three cards and the
// default scoring tables.
func DefaultOptions() Options {
	return Options{
		Resolution: spatial.DefaultResolution,
		TopCards:   riskcard.DefaultTopN,
		Scoring:    DefaultScoring(),
	}
}

// Service runs analyses. It is safe for concurrent use.
type Service struct {
	deps       Deps
	opts       Options
	indexer    *spatial.Indexer
	aggregator *aggregate.Aggregator
	calc       *metric.Calculator
	classifier *area.Classifier
	scorer     *risk.Scorer
	ranker     *riskcard.Ranker

	nowFunc func() time.Time
}

// New validates the scoring tables and wires a Service.
func New(deps Deps, opts Options) (*Service, error) {
	if deps.Categories == nil {
		return nil, eris.New("analysis: category registry is required")
	}
	if err := ValidateScoring(opts.Scoring); err != nil {
		return nil, err
	}
	if deps.Templates == nil {
		t, err := interpret.Default()
		if err != nil {
			return nil, eris.Wrap(err, "analysis: load default templates")
		}
		deps.Templates = t
	}
	if deps.Breakers == nil {
		deps.Breakers = resilience.NewBreakers(resilience.DefaultConfig())
	}
	if opts.TopCards <= 0 {
		opts.TopCards = opts.Scoring.Cards.TopN
	}

	s := &Service{
		deps:       deps,
		opts:       opts,
		indexer:    spatial.NewIndexer(opts.Resolution),
		calc:       metric.NewCalculator(opts.Scoring.Metric),
		classifier: area.NewClassifier(opts.Scoring.Area, deps.Categories.KeysInGroups(ResidentialGroups...)),
		scorer:     risk.NewScorer(opts.Scoring.Risk),
		ranker:     riskcard.NewRanker(opts.Scoring.Cards, opts.Scoring.Risk),
		nowFunc:    time.Now,
	}
	var reader gridstore.Reader
	if deps.Grid != nil {
		reader = guardedReader{next: deps.Grid, cb: deps.Breakers.Get(SourceGrid)}
	}
	s.aggregator = aggregate.New(reader)
	return s, nil
}

// Indexer returns the service's spatial indexer.
func (s *Service) Indexer() *spatial.Indexer { return s.indexer }

// Categories returns the category registry.
func (s *Service) Categories() *category.Registry { return s.deps.Categories }

// RadiusM is the analysis radius.
func (s *Service) RadiusM() float64 { return s.opts.Scoring.Metric.RadiusM }

// Breakers returns the upstream breakers.
func (s *Service) Breakers() *resilience.Breakers { return s.deps.Breakers }

// upstream is what the fan-out collects.
type upstream struct {
	agg       *aggregate.Aggregate
	place     geocode.Place
	geocodeOK bool
	facility  *anchor.Facility
	anchorOK  bool
	rent      float64
	rentFound bool
}

// Analyze scores one location for one category.
//
// Evaluation runs in a fixed order: provisional metrics, a single area
// classification, the traffic patch, then survival. The area type is never
// re-derived from the patched metrics.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	start := s.nowFunc()
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	cat, ok := s.deps.Categories.Get(req.Category)
	if !ok {
		return nil, &ValidationError{Field: "category", Message: "unknown category " + req.Category, Err: ErrUnknownCategory}
	}
	lat, lng := *req.Lat, *req.Lng
	log := zap.L().With(zap.String("category", cat.Key), zap.Float64("lat", lat), zap.Float64("lng", lng))

	center, err := s.indexer.CellFromPoint(lat, lng)
	if err != nil {
		return nil, &ValidationError{Field: "lat", Message: err.Error(), Err: err}
	}
	cells, err := s.indexer.CellsInRadius(lat, lng, s.RadiusM())
	if err != nil {
		return nil, eris.Wrap(err, "analysis: cells in radius")
	}

	up, err := s.fetch(ctx, lat, lng, cells)
	if err != nil {
		return nil, err
	}

	// Pass one: provisional metrics.
	bundle := metric.Bundle{
		Competition: s.calc.Competition(up.agg, cat.Key),
		Traffic:     s.calc.Traffic(up.agg),
		Cost:        s.calc.Cost(up.place.District, up.rent, up.rentFound),
		Anchor:      s.calc.Anchor(up.facility),
	}

	decision, err := s.classifier.Classify(area.Input{
		Competition: bundle.Competition,
		Traffic:     bundle.Traffic,
		Anchor:      bundle.Anchor,
		Counts:      up.agg.Counts,
		TotalStores: up.agg.TotalStores,
	})
	if err != nil {
		log.Error("analysis: area classification failed", zap.Error(err))
		return nil, eris.Wrap(err, "analysis: classify area")
	}

	// Pass two: patch traffic, then survival from the final traffic level.
	bundle.Traffic = s.calc.EstimateTrafficPattern(bundle.Traffic, decision.Type, bundle.Anchor.Proximity)
	if sv, ok := s.calc.Survival(up.agg); ok {
		bundle.Survival = sv
	} else {
		bundle.Survival = s.calc.EstimateSurvival(bundle.Traffic.Level, bundle.Cost.Level, decision.Type)
	}

	scored := s.scorer.Score(cat, bundle, decision.Type)

	interp, err := s.deps.Templates.Interpret(interpret.Input{
		Category: cat,
		Level:    scored.Level,
		Area:     decision.Type,
		Score:    scored.Score,
		Metrics:  bundle,
	})
	if err != nil {
		return nil, eris.Wrap(err, "analysis: interpret")
	}

	cards := s.ranker.Rank(riskcard.Input{
		Category:  cat,
		Metrics:   bundle,
		SubScores: scored.SubScores,
		Area:      decision.Type,
	}, s.opts.TopCards)

	dq := buildDataQuality(up, bundle)
	s.recordFallbacks(bundle)

	res := &Result{
		ID: uuid.NewString(),
		Location: Location{
			Lat:      lat,
			Lng:      lng,
			Cell:     center.ID,
			Address:  up.place.Address,
			Region:   up.place.Region,
			District: up.place.District,
		},
		Category:       cat,
		Summary:        Summary{Score: scored.Score, Level: scored.Level, AreaType: decision.Type, SubScores: scored.SubScores, Adjustment: scored.Adjustment},
		Area:           decision,
		Metrics:        bundle,
		Interpretation: interp,
		RiskCards:      cards,
		DataQuality:    dq,
		Cells:          cells,
		GeneratedAt:    s.nowFunc().UTC(),
	}

	elapsed := s.nowFunc().Sub(start)
	s.deps.Metrics.RecordAnalysis(cat.Key, string(scored.Level), elapsed)
	log.Info("analysis: complete",
		zap.String("id", res.ID),
		zap.String("cell", center.ID),
		zap.Float64("score", scored.Score),
		zap.String("level", string(scored.Level)),
		zap.String("area", string(decision.Type)),
		zap.Int("warnings", len(dq.Warnings)),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

// fetch runs the grid aggregation, reverse geocode and anchor lookup
// concurrently, then the rent lookup for the resolved district.
func (s *Service) fetch(ctx context.Context, lat, lng float64, cells []string) (upstream, error) {
	var up upstream

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		agg, err := s.aggregator.Aggregate(gctx, cells)
		if err != nil {
			return eris.Wrap(err, "analysis: aggregate")
		}
		up.agg = agg
		return nil
	})
	g.Go(func() error {
		up.place, up.geocodeOK = s.reverse(gctx, lat, lng)
		return nil
	})
	g.Go(func() error {
		up.facility, up.anchorOK = s.nearestAnchor(gctx, lat, lng)
		return nil
	})
	if err := g.Wait(); err != nil {
		return upstream{}, err
	}

	if up.agg.StoreUnavailable || up.agg.TrafficUnavailable {
		s.deps.Metrics.RecordUpstreamError(SourceGrid)
	}
	up.rent, up.rentFound = s.averageRent(ctx, up.place.District)
	return up, nil
}

func (s *Service) reverse(ctx context.Context, lat, lng float64) (geocode.Place, bool) {
	if s.deps.Geocoder == nil {
		return geocode.Place{}, false
	}
	place, err := resilience.Execute(ctx, s.deps.Breakers.Get(SourceGeocode), func(ctx context.Context) (geocode.Place, error) {
		return s.deps.Geocoder.Reverse(ctx, lat, lng)
	})
	if err != nil {
		s.upstreamFailed(SourceGeocode, err)
		return geocode.Place{}, false
	}
	return place, true
}

func (s *Service) nearestAnchor(ctx context.Context, lat, lng float64) (*anchor.Facility, bool) {
	if s.deps.Anchors == nil {
		return nil, false
	}
	radius := s.opts.Scoring.Metric.AnchorThresholdM
	f, err := resilience.Execute(ctx, s.deps.Breakers.Get(SourceAnchor), func(ctx context.Context) (*anchor.Facility, error) {
		return s.deps.Anchors.Nearest(ctx, lat, lng, radius)
	})
	if err != nil {
		s.upstreamFailed(SourceAnchor, err)
		return nil, false
	}
	return f, true
}

type rentHit struct {
	value float64
	found bool
}

func (s *Service) averageRent(ctx context.Context, district string) (float64, bool) {
	if s.deps.Rents == nil || district == "" {
		return 0, false
	}
	hit, err := resilience.Execute(ctx, s.deps.Breakers.Get(SourceRent), func(ctx context.Context) (rentHit, error) {
		v, ok, err := s.deps.Rents.AverageRent(ctx, district)
		return rentHit{value: v, found: ok}, err
	})
	if err != nil {
		s.upstreamFailed(SourceRent, err)
		return 0, false
	}
	return hit.value, hit.found
}

func (s *Service) upstreamFailed(source string, err error) {
	zap.L().Warn("analysis: upstream lookup failed, treating as no data",
		zap.String("source", source),
		zap.Error(err),
	)
	s.deps.Metrics.RecordUpstreamError(source)
}

func (s *Service) recordFallbacks(b metric.Bundle) {
	if b.Traffic.PatternEstimated {
		s.deps.Metrics.RecordFallback(monitoring.FallbackTrafficPattern)
	}
	if b.Traffic.LevelEstimated {
		s.deps.Metrics.RecordFallback(monitoring.FallbackTrafficLevel)
	}
	if b.Survival.Estimated {
		s.deps.Metrics.RecordFallback(monitoring.FallbackSurvival)
	}
	if b.Cost.Defaulted {
		s.deps.Metrics.RecordFallback(monitoring.FallbackRent)
	}
}

// guardedReader routes grid reads through the grid breaker.
type guardedReader struct {
	next gridstore.Reader
	cb   *resilience.CircuitBreaker
}

func (g guardedReader) StoreRecords(ctx context.Context, cells []string) ([]gridstore.StoreRecord, error) {
	return resilience.Execute(ctx, g.cb, func(ctx context.Context) ([]gridstore.StoreRecord, error) {
		return g.next.StoreRecords(ctx, cells)
	})
}

func (g guardedReader) TrafficRecords(ctx context.Context, cells []string) ([]gridstore.TrafficRecord, error) {
	return resilience.Execute(ctx, g.cb, func(ctx context.Context) ([]gridstore.TrafficRecord, error) {
		return g.next.TrafficRecords(ctx, cells)
	})
}
