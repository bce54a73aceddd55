package matcher

import (
	"fmt"
	"time"

	"github.com/hyperjump/resumatch/internal/cache"
	"github.com/hyperjump/resumatch/internal/models"
)

// Default bounds of a ResultStore.
const (
	DefaultResultTTL      = time.Hour
	DefaultResultCapacity = 512
)

// ResultStore keeps recent result sets by ID so callers can page through them.
type ResultStore struct {
	cache *cache.TTLCache[*models.ResultSet]
}

// NewResultStore holds up to capacity result sets for ttl each.
func NewResultStore(capacity int, ttl time.Duration, opts ...cache.Option) *ResultStore {
	if capacity <= 0 {
		capacity = DefaultResultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &ResultStore{cache: cache.New[*models.ResultSet](capacity, ttl, opts...)}
}

// Put stores rs under rs.ID.
func (s *ResultStore) Put(rs *models.ResultSet) {
	s.cache.Set(rs.ID, rs)
}

// Get returns the result set with id or models.ErrNotFound once it has expired.
func (s *ResultStore) Get(id string) (*models.ResultSet, error) {
	rs, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("result %s: %w", id, models.ErrNotFound)
	}
	return rs, nil
}

// Len returns the number of stored result sets.
func (s *ResultStore) Len() int {
	return s.cache.Len()
}
