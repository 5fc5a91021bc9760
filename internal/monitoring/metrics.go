// Package monitoring exposes Prometheus metrics for the analysis service.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/siterisk/internal/cache"
)

// Fallback kinds.
const (
	FallbackTrafficPattern = "traffic_pattern"
	FallbackTrafficLevel   = "traffic_level"
	FallbackSurvival       = "survival"
	FallbackRent           = "rent"
)

// Metrics holds the analysis collectors.
type Metrics struct {
	Analyses       *prometheus.CounterVec
	Fallbacks      *prometheus.CounterVec
	UpstreamErrors *prometheus.CounterVec
	Duration       prometheus.Histogram
	Registry       *prometheus.Registry
}

// NewMetrics creates the collectors on a fresh registry, which also carries
// the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siterisk_analyses_total",
				Help: "Completed analyses by category and risk level.",
			},
			[]string{"category", "level"},
		),
		Fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siterisk_fallbacks_total",
				Help: "Estimation or default paths taken, by kind.",
			},
			[]string{"kind"},
		),
		UpstreamErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siterisk_upstream_errors_total",
				Help: "Upstream lookups that failed and were treated as no data.",
			},
			[]string{"source"},
		),
		Duration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "siterisk_analysis_duration_seconds",
				Help:    "Wall time of an analysis.",
				Buckets: prometheus.DefBuckets,
			},
		),
		Registry: reg,
	}
}

// RecordAnalysis records a completed analysis.
func (m *Metrics) RecordAnalysis(category, level string, d time.Duration) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(category, level).Inc()
	m.Duration.Observe(d.Seconds())
}

// RecordFallback records an estimation or default path.
func (m *Metrics) RecordFallback(kind string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(kind).Inc()
}

// RecordUpstreamError records a failed upstream lookup.
func (m *Metrics) RecordUpstreamError(source string) {
	if m == nil {
		return
	}
	m.UpstreamErrors.WithLabelValues(source).Inc()
}

// RegisterCacheStats exposes a cache's hit, miss and entry counts as gauges
// read at scrape time.
func (m *Metrics) RegisterCacheStats(name string, stats func() cache.Stats) {
	if m == nil {
		return
	}
	f := promauto.With(m.Registry)
	labels := prometheus.Labels{"cache": name}
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "siterisk_cache_hits",
		Help:        "Lookup cache hits.",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Hits) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "siterisk_cache_misses",
		Help:        "Lookup cache misses.",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Misses) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "siterisk_cache_entries",
		Help:        "Lookup cache entries.",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Entries) })
}
