package source

import (
	"context"

	"github.com/hyperjump/resumatch/internal/cache"
	"github.com/hyperjump/resumatch/internal/models"
)

// Cached serves repeated queries from a TTL cache keyed by the normalized query.
// The page count of the first fetch for a query decides what is cached.
type Cached struct {
	inner Source
	cache *cache.TTLCache[[]models.Posting]
}

// NewCached wraps inner with c. The cache should normalize keys case-insensitively.
func NewCached(inner Source, c *cache.TTLCache[[]models.Posting]) *Cached {
	return &Cached{inner: inner, cache: c}
}

// Fetch returns cached postings for query, fetching from the inner source on a miss.
// Failed fetches are not cached.
func (s *Cached) Fetch(ctx context.Context, query string, pages int) ([]models.Posting, error) {
	return s.cache.GetOrFetch(ctx, query, func(ctx context.Context) ([]models.Posting, error) {
		return s.inner.Fetch(ctx, query, pages)
	})
}

// Purge drops every cached query.
func (s *Cached) Purge() {
	s.cache.Purge()
}

// Stats reports cache activity.
func (s *Cached) Stats() cache.Stats {
	return s.cache.Stats()
}
