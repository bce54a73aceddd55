package embedding

import (
	"context"

	"github.com/hyperjump/resumatch/internal/cache"
)

// CachedEmbedder memoizes another embedder's output by exact text.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.TTLCache[[]float32]
}

// NewCachedEmbedder wraps inner with an LRU of at most size entries.
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache.New[[]float32](size, 0)}
}

// Embed returns the cached embedding for text or computes and stores it.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.cache.GetOrFetch(ctx, text, func(ctx context.Context) ([]float32, error) {
		return e.inner.Embed(ctx, text)
	})
}

// EmbedBatch calls Embed for each text.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the wrapped embedder's dimension.
func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close closes the wrapped embedder.
func (e *CachedEmbedder) Close() error {
	e.cache.Purge()
	return e.inner.Close()
}
