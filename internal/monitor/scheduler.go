// Package monitor periodically re-ranks every monitoring rule and records new
// postings on the rule owner's watchlist.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/source"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyRunning is returned by Start on a scheduler that is already running.
var ErrAlreadyRunning = errors.New("monitor already running")

// RuleStore is the persistence the scheduler reads rules from and writes matches to.
type RuleStore interface {
	ListAllRules(ctx context.Context) ([]*models.MonitoringRule, error)
	GetResume(ctx context.Context, id string) (*models.Resume, error)
	InsertMatchIfNew(ctx context.Context, m *models.WatchlistMatch) (bool, error)
}

// TextExtractor reads the text of a resume file.
type TextExtractor interface {
	Extract(path string) (string, error)
}

// Ranker scores postings against a resume.
type Ranker interface {
	Rank(ctx context.Context, resumeText string, postings []models.Posting, topN int) ([]models.MatchResult, error)
}

// Config controls tick frequency and per-rule work.
type Config struct {
	Interval time.Duration // default: 10m
	Pages    int           // default: 1
	TopN     int           // default: 10
	// MinScore is the lowest score recorded on a watchlist; 0 records every top-N result.
	MinScore float64
	// Workers is the number of rules processed at once; 1 keeps rules sequential.
	Workers int
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.Pages <= 0 {
		c.Pages = 1
	}
	if c.TopN <= 0 {
		c.TopN = 10
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
}

// TickReport summarizes one pass over all rules.
type TickReport struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Rules      int           `json:"rules"`
	Failed     int           `json:"failed"`
	NewMatches int           `json:"new_matches"`
	Skipped    bool          `json:"skipped,omitempty"`
}

// Scheduler runs a tick immediately on Start and then every Interval until Stop.
// Ticks never overlap; a tick that is still running when the next is due is skipped.
type Scheduler struct {
	store     RuleStore
	source    source.Source
	extractor TextExtractor
	ranker    Ranker
	cfg       Config
	logger    *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
	last    TickReport

	// busy holds a token while a tick runs.
	busy chan struct{}
}

// New creates a stopped Scheduler.
func New(store RuleStore, src source.Source, extractor TextExtractor, ranker Ranker, cfg Config, logger *zap.Logger) *Scheduler {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:     store,
		source:    src,
		extractor: extractor,
		ranker:    ranker,
		cfg:       cfg,
		logger:    logger.Named("monitor"),
		busy:      make(chan struct{}, 1),
	}
}

// StartMonitoring creates a Scheduler and starts it.
func StartMonitoring(ctx context.Context, store RuleStore, src source.Source, extractor TextExtractor, ranker Ranker, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	s := New(store, src, extractor, ranker, cfg, logger)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Start schedules ticks and runs the first one in the background. Cancelling ctx
// stops future ticks as well. A second Start returns ErrAlreadyRunning.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{l: s.logger.Sugar()}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	job := cron.FuncJob(func() { s.tick(runCtx) })
	c.Schedule(cron.Every(s.cfg.Interval), job)
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.running = true
	go s.tick(runCtx)

	s.logger.Info("monitoring started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("pages", s.cfg.Pages),
		zap.Int("top_n", s.cfg.TopN),
		zap.Int("workers", s.cfg.Workers))
	return nil
}

// Stop halts scheduling, cancels the running tick, and waits for it to return or
// for ctx to expire. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.running = false
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	stopped := c.Stop()
	cancel()

	select {
	case s.busy <- struct{}{}:
		<-s.busy
	case <-ctx.Done():
		return fmt.Errorf("waiting for monitor tick: %w", ctx.Err())
	}
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return fmt.Errorf("waiting for monitor jobs: %w", ctx.Err())
	}
	s.logger.Info("monitoring stopped")
	return nil
}

// Running reports whether the scheduler has been started and not stopped.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastReport returns the report of the most recent completed tick.
func (s *Scheduler) LastReport() TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.RunOnce(ctx)
}

// RunOnce processes every rule once and returns a summary. If another tick is
// in progress or ctx is already done it returns immediately with Skipped set.
func (s *Scheduler) RunOnce(ctx context.Context) TickReport {
	select {
	case s.busy <- struct{}{}:
		defer func() { <-s.busy }()
	default:
		s.logger.Debug("tick skipped, previous tick still running")
		return TickReport{StartedAt: time.Now(), Skipped: true}
	}
	// Stop may cancel ctx between the tick check and taking the token.
	if ctx.Err() != nil {
		return TickReport{StartedAt: time.Now(), Skipped: true}
	}

	report := TickReport{StartedAt: time.Now()}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		s.mu.Lock()
		s.last = report
		s.mu.Unlock()
	}()

	rules, err := s.store.ListAllRules(ctx)
	if err != nil {
		s.logger.Error("failed to load monitoring rules", zap.Error(err))
		return report
	}
	report.Rules = len(rules)
	if len(rules) == 0 {
		s.logger.Debug("no monitoring rules")
		return report
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, rule := range rules {
		rule := rule
		g.Go(func() error {
			added, err := s.processRule(ctx, rule)
			mu.Lock()
			defer mu.Unlock()
			report.NewMatches += added
			if err != nil {
				report.Failed++
				s.logger.Warn("monitoring rule failed",
					zap.String("rule_id", rule.ID),
					zap.String("query", rule.Query),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("monitoring tick complete",
		zap.Int("rules", report.Rules),
		zap.Int("failed", report.Failed),
		zap.Int("new_matches", report.NewMatches),
		zap.Duration("took", time.Since(report.StartedAt)))
	return report
}

// processRule ranks fresh postings for one rule and records the ones not yet on
// its watchlist. It returns the number of matches added.
func (s *Scheduler) processRule(ctx context.Context, rule *models.MonitoringRule) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	resume, err := s.store.GetResume(ctx, rule.ResumeID)
	if err != nil {
		return 0, fmt.Errorf("load resume: %w", err)
	}
	text, err := s.extractor.Extract(resume.Path)
	if err != nil {
		return 0, fmt.Errorf("extract resume %s: %w", resume.Filename, err)
	}
	postings, err := s.source.Fetch(ctx, rule.Query, s.cfg.Pages)
	if err != nil {
		return 0, fmt.Errorf("fetch postings: %w", err)
	}
	postings = models.UniquePostings(postings)
	results, err := s.ranker.Rank(ctx, text, postings, s.cfg.TopN)
	if err != nil {
		return 0, fmt.Errorf("rank postings: %w", err)
	}

	added := 0
	now := time.Now().UTC()
	for _, r := range results {
		if r.Score < s.cfg.MinScore {
			continue
		}
		inserted, err := s.store.InsertMatchIfNew(ctx, &models.WatchlistMatch{
			RuleID:       rule.ID,
			Posting:      r.Posting,
			Score:        r.Score,
			DiscoveredAt: now,
		})
		if err != nil {
			return added, fmt.Errorf("record match %q: %w", r.Title, err)
		}
		if inserted {
			added++
		}
	}
	if added > 0 {
		s.logger.Info("new watchlist matches",
			zap.String("rule_id", rule.ID),
			zap.String("owner_id", rule.OwnerID),
			zap.Int("added", added))
	}
	return added, nil
}
