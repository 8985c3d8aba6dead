// Package server provides the HTTP API for insightbot.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/insightbot/internal/builder"
	"github.com/hyperjump/insightbot/internal/config"
	"github.com/hyperjump/insightbot/internal/search"
	"github.com/hyperjump/insightbot/internal/session"
	"github.com/hyperjump/insightbot/internal/storage"
)

// Server is the HTTP server for the insightbot API.
type Server struct {
	engine   *search.Engine
	sessions *session.Manager
	builder  *builder.Builder
	storage  storage.Storage
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	started  time.Time
}

// NewServer creates a server with the given dependencies. b may be nil, in which
// case dataset reloads are refused.
func NewServer(
	engine *search.Engine,
	sessions *session.Manager,
	b *builder.Builder,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		sessions: sessions,
		builder:  b,
		storage:  store,
		config:   cfg,
		logger:   logger,
		started:  time.Now(),
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	}
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/search", s.handleSearch)

		r.Get("/datasets", s.handleDatasets)
		r.Post("/datasets/{name}/reload", s.handleReload)
		r.Get("/datasets/{name}/records", s.handleLookup)
		r.Get("/datasets/{name}/records/{id}", s.handleGetRecord)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions", s.handleListSessions)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Post("/sessions/{id}/messages", s.handleAsk)
		r.Get("/sessions/{id}/memory", s.handleMemory)
		r.Delete("/sessions/{id}/memory", s.handleClearMemory)
		r.Get("/sessions/{id}/transcript", s.handleTranscript)
	})
	return r
}

// requestLogger logs each request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
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
