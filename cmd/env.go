package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siterisk/internal/analysis"
	"github.com/sells-group/siterisk/internal/cache"
	"github.com/sells-group/siterisk/internal/category"
	"github.com/sells-group/siterisk/internal/config"
	"github.com/sells-group/siterisk/internal/db"
	"github.com/sells-group/siterisk/internal/gridstore"
	"github.com/sells-group/siterisk/internal/interpret"
	"github.com/sells-group/siterisk/internal/monitoring"
	"github.com/sells-group/siterisk/internal/resilience"
	"github.com/sells-group/siterisk/pkg/anchor"
	"github.com/sells-group/siterisk/pkg/geocode"
	"github.com/sells-group/siterisk/pkg/rent"
)

// analysisEnv holds the wired service and everything that must be closed
// with it.
type analysisEnv struct {
	Service *analysis.Service
	Metrics *monitoring.Metrics
	Caches  map[string]func() cache.Stats

	pool   *pgxpool.Pool
	sqlite *gridstore.SQLiteReader
}

// Close releases the database handles.
func (e *analysisEnv) Close() {
	if e.sqlite != nil {
		_ = e.sqlite.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}

// initAnalysis validates the config for mode, opens the configured
// providers and builds the analysis service. Callers should defer
// env.Close().
func initAnalysis(ctx context.Context, mode string) (*analysisEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	reg, err := loadRegistry(cfg.CategoriesFile)
	if err != nil {
		return nil, err
	}
	scoring, err := loadScoring(cfg)
	if err != nil {
		return nil, err
	}
	templates, err := loadTemplates(cfg.TemplatesFile)
	if err != nil {
		return nil, err
	}

	env := &analysisEnv{Caches: map[string]func() cache.Stats{}}
	ok := false
	defer func() {
		if !ok {
			env.Close()
		}
	}()

	if cfg.Store.Driver == "postgres" || cfg.NeedsPostgres() {
		env.pool, err = db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "connect database")
		}
	}

	var grid gridstore.Reader
	switch cfg.Store.Driver {
	case "sqlite":
		env.sqlite, err = gridstore.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite grid store")
		}
		if err := env.sqlite.Migrate(ctx); err != nil {
			return nil, eris.Wrap(err, "migrate sqlite grid store")
		}
		grid = env.sqlite
	default:
		grid = gridstore.NewPostgresReader(env.pool)
	}

	ttl := time.Duration(cfg.Cache.TTLSecs) * time.Second

	var reverser geocode.Reverser
	if cfg.Geocode.Provider == "postgis" {
		cached := geocode.NewCachedReverser(geocode.NewPostGISReverser(env.pool), cache.NewTTL[geocode.Place](cfg.Cache.Capacity, ttl))
		env.Caches[analysis.SourceGeocode] = cached.Stats
		reverser = cached
	}

	finder, err := newAnchorFinder(env.pool)
	if err != nil {
		return nil, err
	}
	if finder != nil {
		cached := anchor.NewCachedFinder(finder, cache.NewTTL[*anchor.Facility](cfg.Cache.Capacity, ttl))
		env.Caches[analysis.SourceAnchor] = cached.Stats
		finder = cached
	}

	rents, err := newRentLookup(env.pool)
	if err != nil {
		return nil, err
	}

	env.Metrics = monitoring.NewMetrics()
	for name, stats := range env.Caches {
		env.Metrics.RegisterCacheStats(name, stats)
	}

	env.Service, err = analysis.New(analysis.Deps{
		Grid:       grid,
		Geocoder:   reverser,
		Anchors:    finder,
		Rents:      rents,
		Categories: reg,
		Templates:  templates,
		Breakers:   resilience.NewBreakers(resilience.FromSettings(cfg.Breaker.FailureThreshold, cfg.Breaker.ResetSecs)),
		Metrics:    env.Metrics,
	}, analysis.Options{
		Resolution: cfg.Grid.Resolution,
		Timeout:    time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second,
		TopCards:   cfg.TopCards,
		Scoring:    scoring,
	})
	if err != nil {
		return nil, eris.Wrap(err, "build analysis service")
	}

	zap.L().Info("analysis service ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("geocode", cfg.Geocode.Provider),
		zap.String("anchor", cfg.Anchor.Provider),
		zap.String("rent", cfg.Rent.Provider),
		zap.Int("categories", len(reg.Keys())),
		zap.Int("resolution", env.Service.Indexer().Resolution()),
		zap.Float64("radius_m", env.Service.RadiusM()),
	)
	ok = true
	return env, nil
}

func newAnchorFinder(pool *pgxpool.Pool) (anchor.Finder, error) {
	switch cfg.Anchor.Provider {
	case "overpass":
		return anchor.NewOverpassFinder(cfg.Anchor.Endpoint,
			anchor.WithRateLimit(cfg.Anchor.RateLimitRPS),
			anchor.WithTags(cfg.Anchor.Tags),
			anchor.WithTimeout(time.Duration(cfg.Anchor.TimeoutSecs)*time.Second),
		), nil
	case "shapefile":
		f, err := anchor.NewShapefileFinder(cfg.Anchor.Shapefile, anchor.DefaultShapefileFields)
		if err != nil {
			return nil, eris.Wrap(err, "load anchor shapefile")
		}
		zap.L().Info("anchor shapefile loaded", zap.Int("facilities", f.Len()))
		return f, nil
	case "postgis":
		cats := cfg.Anchor.POICategories
		if len(cats) == 0 {
			cats = anchor.DefaultPOICategories
		}
		return anchor.NewPostGISFinder(pool, cats), nil
	default:
		return nil, nil
	}
}

func newRentLookup(pool *pgxpool.Pool) (rent.Lookup, error) {
	switch cfg.Rent.Provider {
	case "postgres":
		return rent.NewPostgresLookup(pool), nil
	case "xlsx":
		t, err := rent.LoadXLSX(cfg.Rent.XLSXPath, rent.XLSXOptions{SheetName: cfg.Rent.XLSXSheet})
		if err != nil {
			return nil, eris.Wrap(err, "load rent workbook")
		}
		zap.L().Info("rent table loaded", zap.Int("districts", t.Len()))
		return t, nil
	default:
		return nil, nil
	}
}

func loadRegistry(path string) (*category.Registry, error) {
	if path == "" {
		return category.Default()
	}
	reg, err := category.Load(path)
	if err != nil {
		return nil, eris.Wrap(err, "load categories")
	}
	return reg, nil
}

func loadTemplates(path string) (*interpret.Engine, error) {
	if path == "" {
		return interpret.Default()
	}
	e, err := interpret.Load(path)
	if err != nil {
		return nil, eris.Wrap(err, "load templates")
	}
	return e, nil
}

// loadScoring reads the scoring file and applies the grid, anchor and rent
// overrides from the main config.
func loadScoring(c *config.Config) (analysis.Scoring, error) {
	s, err := analysis.LoadScoring(c.ScoringFile)
	if err != nil {
		return analysis.Scoring{}, eris.Wrap(err, "load scoring")
	}
	if c.Grid.RadiusM > 0 {
		s.Metric.RadiusM = c.Grid.RadiusM
	}
	if c.Anchor.ThresholdM > 0 {
		s.Metric.AnchorThresholdM = c.Anchor.ThresholdM
	}
	if c.Rent.DefaultRent > 0 {
		s.Metric.DefaultRent = c.Rent.DefaultRent
	}
	return s, nil
}
