// Package embedding turns text into dense vectors for keyword relevance scoring.
package embedding

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Options selects and sizes an embedder.
type Options struct {
	// ModelPath points at a sentence-embedding ONNX model. When empty or missing,
	// the feature-hashing embedder is used instead.
	ModelPath  string
	Dimensions int
	MaxTokens  int
	// CacheSize bounds the number of memoized embeddings; 0 disables memoization.
	CacheSize int
}

// Open returns the best available embedder for opts, wrapped in a memo cache.
// A model that fails to load is logged and replaced by the hashing embedder.
func Open(opts Options, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = DefaultDimensions
	}
	var base Embedder
	if opts.ModelPath != "" {
		if _, err := os.Stat(opts.ModelPath); err == nil {
			onnx, err := NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens)
			if err != nil {
				logger.Warn("ONNX embedder unavailable, falling back to feature hashing",
					zap.String("model", opts.ModelPath), zap.Error(err))
			} else {
				base = onnx
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		} else {
			logger.Info("embedding model not found, using feature hashing", zap.String("model", opts.ModelPath))
		}
	}
	if base == nil {
		base = NewHashingEmbedder(opts.Dimensions)
	}
	if opts.CacheSize > 0 {
		return NewCachedEmbedder(base, opts.CacheSize), nil
	}
	return base, nil
}

func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
