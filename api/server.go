// Package api serves the launch records dashboard and its JSON/image API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"launch-dashboard/decision/dataset"
	"launch-dashboard/decision/render"
	"launch-dashboard/pkg/platform"
)

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	router     chi.Router
	ds         *dataset.Dataset
	info       DatasetInfo
	dashboard  *platform.DashboardConfig
	metrics    *Metrics
	checks     map[string]Pinger
	config     *Config
	startTime  time.Time
}

// Config holds server configuration
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxRequestSize int64
	CORSOrigins    []string
	Version        string
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:           8050,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		RequestTimeout: 30 * time.Second,
		MaxRequestSize: 1 << 20, // 1MB
		CORSOrigins:    []string{"*"},
		Version:        "dev",
	}
}

// DatasetInfo describes where the served dataset came from.
type DatasetInfo struct {
	Source     string `json:"source"`
	SnapshotID string `json:"snapshot_id,omitempty"`
}

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewServer creates a new API server for an already validated dataset.
func NewServer(ds *dataset.Dataset, info DatasetInfo, dashboard *platform.DashboardConfig, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if dashboard == nil {
		dashboard = platform.DefaultConfig()
	}

	s := &Server{
		ds:        ds,
		info:      info,
		dashboard: dashboard,
		metrics:   NewMetrics(),
		checks:    make(map[string]Pinger),
		config:    config,
		startTime: time.Now(),
	}
	s.metrics.datasetRecords.Set(float64(ds.Len()))
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// AddReadinessCheck registers a dependency for /health/ready.
func (s *Server) AddReadinessCheck(name string, p Pinger) {
	s.checks[name] = p
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))
	r.Use(s.corsMiddleware)

	r.Get("/", s.handleDashboard)

	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/version", s.handleVersion)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sites", s.handleSites)
		r.Get("/dataset", s.handleDataset)
		r.Get("/charts/pie", s.handlePie)
		r.Get("/charts/scatter", s.handleScatter)
		for _, f := range []render.Format{render.SVG, render.PNG} {
			r.Get("/charts/pie."+string(f), s.handlePieImage(f))
			r.Get("/charts/scatter."+string(f), s.handleScatterImage(f))
		}
		r.Post("/selection", s.handleSelection)
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().
		Int("port", s.config.Port).
		Str("version", s.config.Version).
		Str("dataset", s.info.Source).
		Int("records", s.ds.Len()).
		Msg("Starting launch dashboard server")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown serves until ctx is cancelled or SIGINT/SIGTERM
// arrives, then drains in-flight requests.
func (s *Server) StartWithGracefulShutdown(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		if slices.Contains(s.config.CORSOrigins, "*") || slices.Contains(s.config.CORSOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "launchdash",
		"version": s.config.Version,
		"uptime":  time.Since(s.startTime).String(),
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("check", name).Msg("Readiness check failed")
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": name + " unreachable",
			})
			return
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"records": s.ds.Len(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"version": s.config.Version,
		"service": "launchdash",
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}
