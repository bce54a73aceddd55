// Package server provides the HTTP API for resumatch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/resumatch/internal/cache"
	"github.com/hyperjump/resumatch/internal/config"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/monitor"
	"github.com/hyperjump/resumatch/internal/storage"
	"go.uber.org/zap"
)

// OwnerHeader carries the caller's owner ID.
const OwnerHeader = "X-Owner-ID"

// Matcher runs interactive ranking requests.
type Matcher interface {
	RankForResume(ctx context.Context, req models.RankRequest) (*models.ResultSet, error)
	RankAuto(ctx context.Context, req models.RankRequest) (*models.ResultSet, error)
	AutoDetectQuery(ctx context.Context, resumeText string) (string, error)
	Result(id string) (*models.ResultSet, error)
}

// TextExtractor reads the text of an uploaded resume.
type TextExtractor interface {
	Extract(path string) (string, error)
}

// MonitorStatus reports on the background scheduler.
type MonitorStatus interface {
	Running() bool
	LastReport() monitor.TickReport
}

// CacheStatser reports cache activity.
type CacheStatser interface {
	Stats() cache.Stats
}

// Server is the HTTP server for the resumatch API.
type Server struct {
	matcher   Matcher
	storage   storage.Storage
	extractor TextExtractor
	monitor   MonitorStatus
	postings  CacheStatser
	cfg       *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithMonitor exposes the scheduler's state on /api/v1/status.
func WithMonitor(m MonitorStatus) Option {
	return func(s *Server) { s.monitor = m }
}

// WithPostingCache exposes posting cache stats on /api/v1/status.
func WithPostingCache(c CacheStatser) Option {
	return func(s *Server) { s.postings = c }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	m Matcher,
	store storage.Storage,
	extractor TextExtractor,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		matcher:   m,
		storage:   store,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Post("/match", s.handleMatch)
		r.Post("/match/auto", s.handleMatchAuto)
		r.Post("/detect-query", s.handleDetectQuery)

		r.Get("/results/{id}", s.handleResultPage)
		r.Get("/results/{id}/jobs/{index}", s.handleResultJob)
		r.Get("/results/{id}/export.csv", s.handleResultExport)

		r.Group(func(r chi.Router) {
			r.Use(s.requireOwner)

			r.Post("/resumes", s.handleUploadResume)
			r.Get("/resumes", s.handleListResumes)
			r.Get("/resumes/{id}/file", s.handleResumeFile)
			r.Delete("/resumes/{id}", s.handleDeleteResume)

			r.Post("/rules", s.handleCreateRule)
			r.Get("/rules", s.handleListRules)
			r.Delete("/rules/{id}", s.handleDeleteRule)
			r.Get("/rules/{id}/matches", s.handleRuleMatches)

			r.Get("/watchlist", s.handleWatchlist)
			r.Delete("/watchlist/{id}", s.handleDeleteWatchlistMatch)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
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

func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(OwnerHeader) == "" {
			s.respondError(w, http.StatusUnauthorized, OwnerHeader+" header is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ownerID(r *http.Request) string {
	return r.Header.Get(OwnerHeader)
}
