// Package matcher composes the posting source, ranker, and filters into the
// interactive matching operations.
package matcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/ranking"
	"github.com/hyperjump/resumatch/internal/source"
	"go.uber.org/zap"
)

// Ranker scores postings against a resume.
type Ranker interface {
	Rank(ctx context.Context, resumeText string, postings []models.Posting, topN int) ([]models.MatchResult, error)
}

// Config sizes the interactive path.
type Config struct {
	// TopN is the number of ranked postings kept when a request does not say.
	TopN int
	// Pages is how many source pages are fetched per query.
	Pages int
}

// Service runs ranking requests. It is safe for concurrent use; every call
// produces its own result set.
type Service struct {
	source   source.Source
	ranker   Ranker
	keywords ranking.KeywordSource
	results  *ResultStore
	cfg      Config
	logger   *zap.Logger
}

// NewService creates a Service. results may be nil when result sets need not be kept.
func NewService(src source.Source, ranker Ranker, keywords ranking.KeywordSource, results *ResultStore, cfg Config, logger *zap.Logger) *Service {
	if cfg.TopN <= 0 {
		cfg.TopN = 100
	}
	if cfg.Pages <= 0 {
		cfg.Pages = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: src, ranker: ranker, keywords: keywords, results: results, cfg: cfg, logger: logger}
}

// RankForResume fetches postings for the query, ranks them against the resume,
// and applies the location and minimum score filters. The result set is stored
// for later pagination when the service has a ResultStore.
func (s *Service) RankForResume(ctx context.Context, req models.RankRequest) (*models.ResultSet, error) {
	if err := req.Validate(s.cfg.TopN); err != nil {
		return nil, err
	}
	start := time.Now()

	postings, err := s.source.Fetch(ctx, req.Query, s.cfg.Pages)
	if err != nil {
		return nil, fmt.Errorf("fetch postings for %q: %w", req.Query, err)
	}
	ranked, err := s.ranker.Rank(ctx, req.ResumeText, postings, req.TopN)
	if err != nil {
		return nil, fmt.Errorf("rank postings: %w", err)
	}
	ranked = ranking.FilterByLocation(ranked, req.Location)
	ranked = ranking.FilterByMinScore(ranked, req.MinScore)

	rs := &models.ResultSet{
		ID:        uuid.NewString(),
		Query:     req.Query,
		Results:   ranked,
		CreatedAt: time.Now().UTC(),
	}
	if s.results != nil {
		s.results.Put(rs)
	}
	s.logger.Info("ranked resume",
		zap.String("query", req.Query),
		zap.Int("postings", len(postings)),
		zap.Int("results", len(ranked)),
		zap.String("location", req.Location),
		zap.Float64("min_score", req.MinScore),
		zap.Duration("took", time.Since(start)))
	return rs, nil
}

// AutoDetectQuery returns the single most salient phrase of the resume, or ""
// when the resume has none.
func (s *Service) AutoDetectQuery(ctx context.Context, resumeText string) (string, error) {
	q, err := s.keywords.KeywordString(ctx, resumeText, 1)
	if err != nil {
		return "", fmt.Errorf("detect query: %w", err)
	}
	return strings.TrimSpace(q), nil
}

// RankAuto detects a query from the resume and ranks against it. req.Query is ignored.
func (s *Service) RankAuto(ctx context.Context, req models.RankRequest) (*models.ResultSet, error) {
	q, err := s.AutoDetectQuery(ctx, req.ResumeText)
	if err != nil {
		return nil, err
	}
	if q == "" {
		return nil, fmt.Errorf("no query detected in resume: %w", models.ErrEmptyQuery)
	}
	req.Query = q
	return s.RankForResume(ctx, req)
}

// Result returns a stored result set.
func (s *Service) Result(id string) (*models.ResultSet, error) {
	if s.results == nil {
		return nil, fmt.Errorf("result %s: %w", id, models.ErrNotFound)
	}
	return s.results.Get(id)
}
