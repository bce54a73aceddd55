package ranking

import "runtime"

// RankingConfig holds the weights and sizes of the hybrid scorer.
type RankingConfig struct {
	// Weights of the two cosine similarities; the sum is scaled to 0..100.
	FullTextWeight float64 `yaml:"fulltext_weight"` // default: 0.5
	KeywordWeight  float64 `yaml:"keyword_weight"`  // default: 0.5

	// Keyphrases extracted per document for the keyword pass.
	KeywordCount int `yaml:"keyword_count"` // default: 30

	// Parallel keyword extractions per ranking call.
	Workers int `yaml:"workers"` // default: NumCPU

	// Memoized posting keyword strings shared across calls; 0 disables.
	KeywordCacheSize int `yaml:"keyword_cache_size"` // default: 2048
}

// DefaultRankingConfig returns the even full-text/keyword blend.
func DefaultRankingConfig() *RankingConfig {
	c := &RankingConfig{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values with defaults.
func (c *RankingConfig) ApplyDefaults() {
	if c.FullTextWeight == 0 && c.KeywordWeight == 0 {
		c.FullTextWeight = 0.5
		c.KeywordWeight = 0.5
	}
	if c.KeywordCount <= 0 {
		c.KeywordCount = 30
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.KeywordCacheSize == 0 {
		c.KeywordCacheSize = 2048
	}
}
