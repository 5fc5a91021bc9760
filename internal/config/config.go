package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store          StoreConfig   `yaml:"store" mapstructure:"store"`
	Server         ServerConfig  `yaml:"server" mapstructure:"server"`
	Log            LogConfig     `yaml:"log" mapstructure:"log"`
	Grid           GridConfig    `yaml:"grid" mapstructure:"grid"`
	Anchor         AnchorConfig  `yaml:"anchor" mapstructure:"anchor"`
	Rent           RentConfig    `yaml:"rent" mapstructure:"rent"`
	Geocode        GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Cache          CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Breaker        BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
	CategoriesFile string        `yaml:"categories_file" mapstructure:"categories_file"`
	ScoringFile    string        `yaml:"scoring_file" mapstructure:"scoring_file"`
	TemplatesFile  string        `yaml:"templates_file" mapstructure:"templates_file"`
	TopCards       int           `yaml:"top_cards" mapstructure:"top_cards"`
}

// StoreConfig configures the grid database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GridConfig configures the spatial index. A zero RadiusM keeps the
// scoring default.
type GridConfig struct {
	Resolution int     `yaml:"resolution" mapstructure:"resolution"`
	RadiusM    float64 `yaml:"radius_m" mapstructure:"radius_m"`
}

// AnchorConfig selects and tunes the anchor facility provider.
type AnchorConfig struct {
	Provider      string   `yaml:"provider" mapstructure:"provider"`
	Endpoint      string   `yaml:"endpoint" mapstructure:"endpoint"`
	Shapefile     string   `yaml:"shapefile" mapstructure:"shapefile"`
	ThresholdM    float64  `yaml:"threshold_m" mapstructure:"threshold_m"`
	RateLimitRPS  float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	TimeoutSecs   int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Tags          []string `yaml:"tags" mapstructure:"tags"`
	POICategories []string `yaml:"poi_categories" mapstructure:"poi_categories"`
}

// RentConfig selects the district rent source. A zero DefaultRent keeps
// the scoring default.
type RentConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	XLSXPath    string  `yaml:"xlsx_path" mapstructure:"xlsx_path"`
	XLSXSheet   string  `yaml:"xlsx_sheet" mapstructure:"xlsx_sheet"`
	DefaultRent float64 `yaml:"default_rent" mapstructure:"default_rent"`
}

// GeocodeConfig selects the reverse geocoder.
type GeocodeConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// CacheConfig bounds the lookup caches.
type CacheConfig struct {
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
	TTLSecs  int `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// BreakerConfig tunes the upstream circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetSecs        int `yaml:"reset_secs" mapstructure:"reset_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITERISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_secs", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("grid.resolution", 9)
	v.SetDefault("anchor.provider", "overpass")
	v.SetDefault("anchor.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("anchor.rate_limit_rps", 1.0)
	v.SetDefault("anchor.timeout_secs", 10)
	v.SetDefault("rent.provider", "postgres")
	v.SetDefault("geocode.provider", "postgis")
	v.SetDefault("cache.capacity", 10000)
	v.SetDefault("cache.ttl_secs", 3600)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_secs", 30)
	v.SetDefault("top_cards", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// NeedsPostgres reports whether any lookup provider reads Postgres.
func (c *Config) NeedsPostgres() bool {
	return c.Anchor.Provider == "postgis" ||
		c.Rent.Provider == "postgres" ||
		c.Geocode.Provider == "postgis"
}

// Validate checks the configuration for a command mode: "serve", "analyze"
// or "cells".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "analyze":
		errs = append(errs, c.validateProviders()...)
		if mode == "serve" {
			if c.Server.Port <= 0 || c.Server.Port > 65535 {
				errs = append(errs, "server.port must be > 0 and <= 65535")
			}
			if c.Server.RequestTimeoutSecs < 0 {
				errs = append(errs, "server.request_timeout_secs must be >= 0")
			}
		}
	case "cells":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Grid.Resolution < 0 || c.Grid.Resolution > 15 {
		errs = append(errs, "grid.resolution must be between 0 and 15")
	}
	if c.Grid.RadiusM < 0 {
		errs = append(errs, "grid.radius_m must be >= 0")
	}
	if c.TopCards < 0 {
		errs = append(errs, "top_cards must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateProviders() []string {
	var errs []string

	oneOf := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, "|")))
	}
	oneOf("store.driver", c.Store.Driver, "postgres", "sqlite")
	oneOf("anchor.provider", c.Anchor.Provider, "overpass", "shapefile", "postgis", "none")
	oneOf("rent.provider", c.Rent.Provider, "postgres", "xlsx", "none")
	oneOf("geocode.provider", c.Geocode.Provider, "postgis", "none")

	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Store.Driver == "sqlite" && c.NeedsPostgres() {
		errs = append(errs, "postgis and postgres providers require store.driver postgres")
	}
	if c.Anchor.Provider == "shapefile" && c.Anchor.Shapefile == "" {
		errs = append(errs, "anchor.shapefile is required for the shapefile provider")
	}
	if c.Rent.Provider == "xlsx" && c.Rent.XLSXPath == "" {
		errs = append(errs, "rent.xlsx_path is required for the xlsx provider")
	}
	if c.Anchor.ThresholdM < 0 {
		errs = append(errs, "anchor.threshold_m must be >= 0")
	}
	if c.Rent.DefaultRent < 0 {
		errs = append(errs, "rent.default_rent must be >= 0")
	}
	if c.Cache.Capacity < 0 || c.Cache.TTLSecs < 0 {
		errs = append(errs, "cache.capacity and cache.ttl_secs must be >= 0")
	}
	if c.Breaker.FailureThreshold < 0 || c.Breaker.ResetSecs < 0 {
		errs = append(errs, "breaker.failure_threshold and breaker.reset_secs must be >= 0")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
