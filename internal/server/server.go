// Package server exposes the analysis service over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/siterisk/internal/analysis"
	"github.com/sells-group/siterisk/internal/cache"
	"github.com/sells-group/siterisk/internal/monitoring"
	"github.com/sells-group/siterisk/internal/spatial"
)

// MaxCellsRadiusM bounds the radius accepted by the cells endpoint.
const MaxCellsRadiusM = 5000

// Options configure the router.
type Options struct {
	CORSOrigins []string
	Metrics     *monitoring.Metrics
	// Caches are reported by /health, keyed by name.
	Caches map[string]func() cache.Stats
}

// Server routes HTTP requests to an analysis.Service.
type Server struct {
	svc  *analysis.Service
	opts Options
}

// New creates a Server.
func New(svc *analysis.Service, opts Options) *Server {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{svc: svc, opts: opts}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/cells", s.handleCells)
		r.Get("/cells/{cell}/boundary", s.handleBoundary)
		r.Get("/categories", s.handleCategories)
	})
	if s.opts.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Metrics.Registry, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	caches := make(map[string]cache.Stats, len(s.opts.Caches))
	for name, stats := range s.opts.Caches {
		caches[name] = stats()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"caches":   caches,
		"breakers": s.svc.Breakers().States(),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	res, err := s.svc.Analyze(r.Context(), req)
	if err != nil {
		var verr *analysis.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Message, verr.Field)
			return
		}
		zap.L().Error("server: analysis failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "analysis failed", "")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type cellsResponse struct {
	Center     spatial.Cell `json:"center"`
	Resolution int          `json:"resolution"`
	RadiusM    float64      `json:"radius_m"`
	Rings      int          `json:"rings"`
	Cells      []string     `json:"cells"`
}

func (s *Server) handleCells(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lat must be a number", "lat")
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lng must be a number", "lng")
		return
	}
	radius := s.svc.RadiusM()
	if v := q.Get("radius"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil || radius < 0 || radius > MaxCellsRadiusM {
			writeError(w, http.StatusBadRequest, "radius must be between 0 and "+strconv.Itoa(MaxCellsRadiusM), "radius")
			return
		}
	}

	ix := s.svc.Indexer()
	center, err := ix.CellFromPoint(lat, lng)
	if err != nil {
		writeError(w, http.StatusBadRequest, "coordinate out of range or not a number", "lat")
		return
	}
	cells, err := ix.CellsInRadius(lat, lng, radius)
	if err != nil {
		writeError(w, http.StatusBadRequest, "coordinate out of range or not a number", "lat")
		return
	}

	if q.Get("format") == "geojson" {
		data, err := ix.CollectionGeoJSON(cells)
		if err != nil {
			zap.L().Error("server: encode cells", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "encode failed", "")
			return
		}
		writeRaw(w, "application/geo+json", data)
		return
	}

	writeJSON(w, http.StatusOK, cellsResponse{
		Center:     center,
		Resolution: ix.Resolution(),
		RadiusM:    radius,
		Rings:      ix.RingCount(radius),
		Cells:      cells,
	})
}

func (s *Server) handleBoundary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cell")
	data, err := s.svc.Indexer().BoundaryGeoJSON(id)
	if err != nil {
		if errors.Is(err, spatial.ErrInvalidCell) {
			writeError(w, http.StatusBadRequest, "invalid cell id", "cell")
			return
		}
		zap.L().Error("server: encode boundary", zap.String("cell", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "encode failed", "")
		return
	}
	writeRaw(w, "application/geo+json", data)
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.svc.Categories().All(),
	})
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, field string) {
	writeJSON(w, status, errorBody{Error: msg, Field: field})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: write response", zap.Error(err))
	}
}

func writeRaw(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
