// Package storage persists resumes, monitoring rules, and watchlist matches.
package storage

import (
	"context"

	"github.com/hyperjump/resumatch/internal/models"
)

// Storage defines resume, rule, and match persistence operations.
// Owner-scoped deletes report models.ErrNotFound for rows the owner does not hold.
type Storage interface {
	// Resume operations
	CreateResume(ctx context.Context, r *models.Resume) error
	GetResume(ctx context.Context, id string) (*models.Resume, error)
	ListResumes(ctx context.Context, ownerID string) ([]*models.Resume, error)
	DeleteResume(ctx context.Context, ownerID, id string) error

	// Monitoring rule operations
	CreateRule(ctx context.Context, rule *models.MonitoringRule) error
	GetRule(ctx context.Context, id string) (*models.MonitoringRule, error)
	ListRules(ctx context.Context, ownerID string) ([]*models.MonitoringRule, error)
	ListAllRules(ctx context.Context) ([]*models.MonitoringRule, error)
	DeleteRule(ctx context.Context, ownerID, id string) error

	// Watchlist operations
	InsertMatchIfNew(ctx context.Context, m *models.WatchlistMatch) (bool, error)
	ListMatchesByRule(ctx context.Context, ruleID string) ([]*models.WatchlistMatch, error)
	ListMatchesByOwner(ctx context.Context, ownerID string, offset, limit int) ([]*models.WatchlistMatch, error)
	CountMatchesByOwner(ctx context.Context, ownerID string) (int64, error)
	DeleteMatch(ctx context.Context, ownerID, id string) error

	// Stats
	Counts(ctx context.Context) (Counts, error)

	Close() error
}

// Counts is a row count per table.
type Counts struct {
	Resumes int64 `json:"resumes"`
	Rules   int64 `json:"rules"`
	Matches int64 `json:"matches"`
}
