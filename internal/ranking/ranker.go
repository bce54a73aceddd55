// Package ranking scores job postings against a resume.
package ranking

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperjump/resumatch/internal/cache"
	"github.com/hyperjump/resumatch/internal/keyword"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// KeywordSource returns the keyphrase string of a document.
type KeywordSource interface {
	KeywordString(ctx context.Context, text string, n int) (string, error)
}

// Ranker blends full-text TF-IDF similarity with similarity over extracted
// keyphrases. It holds no per-call state and is safe for concurrent use.
type Ranker struct {
	config   *RankingConfig
	keywords KeywordSource
	fullText *Vectorizer
	keyText  *Vectorizer
	memo     *cache.TTLCache[string]
	logger   *zap.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Ranker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRanker creates a Ranker that extracts keyphrases with keywords.
func NewRanker(keywords KeywordSource, config *RankingConfig, opts ...Option) *Ranker {
	if config == nil {
		config = DefaultRankingConfig()
	}
	config.ApplyDefaults()
	r := &Ranker{
		config:   config,
		keywords: keywords,
		fullText: NewVectorizer(true),
		keyText:  NewVectorizer(false),
		logger:   zap.NewNop(),
	}
	if config.KeywordCacheSize > 0 {
		r.memo = cache.New[string](config.KeywordCacheSize, 0)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores every posting against resumeText and returns the topN best, highest
// first. Equal scores keep input order. topN <= 0 returns all postings.
// Empty postings yield an empty, non-nil slice.
func (r *Ranker) Rank(ctx context.Context, resumeText string, postings []models.Posting, topN int) ([]models.MatchResult, error) {
	if len(postings) == 0 {
		return []models.MatchResult{}, nil
	}

	combined := make([]string, len(postings))
	for i, p := range postings {
		combined[i] = p.Combined()
	}
	fullScores := r.fullText.Similarities(resumeText, combined)

	resumeKeywords, err := r.keywords.KeywordString(ctx, resumeText, r.config.KeywordCount)
	if err != nil {
		return nil, fmt.Errorf("resume keywords: %w", err)
	}
	postingKeywords, err := r.postingKeywords(ctx, combined)
	if err != nil {
		return nil, err
	}
	keywordScores := r.keyText.Similarities(resumeKeywords, postingKeywords)

	results := make([]models.MatchResult, len(postings))
	for i, p := range postings {
		score := (r.config.FullTextWeight*fullScores[i] + r.config.KeywordWeight*keywordScores[i]) * 100
		results[i] = models.MatchResult{Posting: p, Score: utils.Clamp(score, 0, 100)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}

	r.logger.Debug("ranked postings",
		zap.Int("postings", len(postings)),
		zap.Int("returned", len(results)),
		zap.Bool("resume_keywords", resumeKeywords != ""))
	return results, nil
}

func (r *Ranker) postingKeywords(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			kw, err := r.keywordString(gctx, text)
			if err != nil {
				return fmt.Errorf("posting %d keywords: %w", i, err)
			}
			out[i] = kw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Ranker) keywordString(ctx context.Context, text string) (string, error) {
	if r.memo == nil {
		return r.keywords.KeywordString(ctx, text, r.config.KeywordCount)
	}
	return r.memo.GetOrFetch(ctx, text, func(ctx context.Context) (string, error) {
		return r.keywords.KeywordString(ctx, text, r.config.KeywordCount)
	})
}

var _ KeywordSource = (*keyword.Extractor)(nil)
