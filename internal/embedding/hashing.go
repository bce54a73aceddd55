package embedding

import (
	"context"

	"github.com/cespare/xxhash/v2"
	"github.com/hyperjump/resumatch/internal/textproc"
	"github.com/hyperjump/resumatch/pkg/utils"
)

// DefaultDimensions matches all-MiniLM-L6-v2, the usual keyword extraction model.
const DefaultDimensions = 384

// HashingEmbedder projects text into a fixed-size space by signed feature hashing
// of its lowercased terms. It is deterministic and needs no model files; texts that
// share terms get high cosine similarity.
type HashingEmbedder struct {
	dimensions int
	analyzer   *textproc.Analyzer
}

// NewHashingEmbedder returns a feature-hashing embedder of the given dimensions.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashingEmbedder{dimensions: dimensions, analyzer: textproc.MustAnalyzer(true)}
}

// Embed returns the unit-length hashed term vector of text. Text with no terms
// yields the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, term := range e.analyzer.Terms(text) {
		h := xxhash.Sum64String(term)
		idx := h % uint64(e.dimensions)
		if h>>63 == 1 {
			emb[idx]--
		} else {
			emb[idx]++
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HashingEmbedder) Close() error {
	return nil
}
