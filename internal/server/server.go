// Package server provides the HTTP API for eiga.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/eiga/internal/catalog"
	"github.com/hyperjump/eiga/internal/config"
	"github.com/hyperjump/eiga/internal/embedding"
	"github.com/hyperjump/eiga/internal/metrics"
	"github.com/hyperjump/eiga/internal/recommend"
	"github.com/hyperjump/eiga/internal/storage"
	"go.uber.org/zap"
)

// Server is the HTTP server for the eiga API.
type Server struct {
	recommender *recommend.Recommender
	catalogs    *catalog.Store
	storage     storage.Storage
	embedder    embedding.Embedder
	metrics     *metrics.Metrics
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies. m may be nil, which disables /metrics.
func NewServer(
	rec *recommend.Recommender,
	catalogs *catalog.Store,
	store storage.Storage,
	embedder embedding.Embedder,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		recommender: rec,
		catalogs:    catalogs,
		storage:     store,
		embedder:    embedder,
		metrics:     m,
		config:      cfg,
		logger:      logger,
	}
}

// Routes returns the HTTP handler with all routes and middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommend", s.handleRecommend)
		r.Get("/recommend", s.handleRecommendGet)
		r.Get("/movies/{position}", s.handleGetMovie)
		r.Get("/movies/{position}/similar", s.handleSimilar)
		r.Get("/similar", s.handleSimilarByTitle)
		r.Get("/titles", s.handleTitleSuggestions)
		r.Get("/status", s.handleStatus)
		r.Post("/catalog/reload", s.handleReload)
	})
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}
