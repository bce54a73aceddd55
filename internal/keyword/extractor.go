// Package keyword extracts the phrases that best summarize a document.
package keyword

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/resumatch/internal/embedding"
	"github.com/hyperjump/resumatch/internal/textproc"
	"github.com/hyperjump/resumatch/pkg/utils"
)

// DefaultCount is the number of keyphrases taken from a resume or posting.
const DefaultCount = 30

// Keyword is a candidate phrase and its similarity to the source document.
type Keyword struct {
	Phrase string  `json:"phrase"`
	Score  float64 `json:"score"`
}

// Extractor ranks the unigram and bigram phrases of a document by the cosine
// similarity of their embedding to the document's embedding.
type Extractor struct {
	embedder embedding.Embedder
	analyzer *textproc.Analyzer
	maxNgram int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxNgram sets the longest candidate phrase in words (default 2).
func WithMaxNgram(n int) Option {
	return func(x *Extractor) {
		if n > 0 {
			x.maxNgram = n
		}
	}
}

// NewExtractor returns an extractor backed by embedder. Candidates exclude English stop words.
func NewExtractor(embedder embedding.Embedder, opts ...Option) *Extractor {
	x := &Extractor{
		embedder: embedder,
		analyzer: textproc.MustAnalyzer(true),
		maxNgram: 2,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Extract returns up to n keyphrases of text, most relevant first. Ties keep the
// order in which phrases first appear. Empty text yields no keywords.
func (x *Extractor) Extract(ctx context.Context, text string, n int) ([]Keyword, error) {
	if n <= 0 {
		n = DefaultCount
	}
	candidates := Candidates(x.analyzer.Tokens(text), x.maxNgram)
	if len(candidates) == 0 {
		return nil, nil
	}

	doc, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed document: %w", err)
	}
	vecs, err := x.embedder.EmbedBatch(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}

	out := make([]Keyword, len(candidates))
	for i, c := range candidates {
		out[i] = Keyword{Phrase: c, Score: utils.CosineSimilarity(doc, vecs[i])}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// KeywordString returns the top n keyphrases of text joined by single spaces.
func (x *Extractor) KeywordString(ctx context.Context, text string, n int) (string, error) {
	kws, err := x.Extract(ctx, text, n)
	if err != nil {
		return "", err
	}
	return Join(kws), nil
}

// Join concatenates the phrases of kws with single spaces.
func Join(kws []Keyword) string {
	phrases := make([]string, len(kws))
	for i, k := range kws {
		phrases[i] = k.Phrase
	}
	return strings.Join(phrases, " ")
}

// Candidates returns the distinct 1..maxNgram word phrases of tokens in first-occurrence order.
func Candidates(tokens []textproc.Token, maxNgram int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, g := range textproc.Ngrams(tokens, 1, maxNgram) {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}
