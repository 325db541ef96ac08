// Package server exposes the Upload & Predict and Data Overview views over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/churn-cli/internal/pipeline"
	"github.com/sells-group/churn-cli/internal/session"
	"github.com/sells-group/churn-cli/internal/store"
)

// Config holds HTTP surface limits.
type Config struct {
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

// Server wires the pipeline, session store and run history into an HTTP handler.
type Server struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	sessions session.Store
	runs     store.Store
	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithRunStore exposes run history under /api/runs.
func WithRunStore(st store.Store) Option {
	return func(s *Server) { s.runs = st }
}

// WithGatherer serves g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates a Server.
func New(cfg Config, p *pipeline.Pipeline, sessions session.Store, opts ...Option) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		sessions: sessions,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", SessionHeader},
		ExposedHeaders:   []string{SessionHeader, "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimitRPS > 0 {
			r.Use(newRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst, 10*time.Minute).Middleware)
		}
		r.Post("/upload", s.handleUpload)
		r.Post("/predict", s.handlePredict)
		r.Get("/overview", s.handleOverview)
		r.Get("/results/{view}", s.handleResults)

		if s.runs != nil {
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)
		}
	})

	return r
}
