// Package textproc tokenizes free text for the ranking and keyword stages.
package textproc

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	analyzerName     = "resumatch_terms"
	stopAnalyzerName = "resumatch_terms_stop"

	// MinTokenLength drops single-character tokens such as stray initials.
	MinTokenLength = 2
)

// Token is a normalized term and its position in the source text.
type Token struct {
	Term     string
	Position int
}

// Analyzer lowercases and splits text on Unicode word boundaries, optionally
// dropping English stop words. Safe for concurrent use.
type Analyzer struct {
	analyze func([]byte) analysis.TokenStream
}

// NewAnalyzer builds an analyzer. With removeStopWords, English stop words are dropped
// but the positions of the remaining tokens still reflect the original text.
func NewAnalyzer(removeStopWords bool) (*Analyzer, error) {
	name := analyzerName
	filters := []interface{}{lowercase.Name}
	if removeStopWords {
		name = stopAnalyzerName
		filters = append(filters, en.StopName)
	}
	cache := registry.NewCache()
	a, err := cache.DefineAnalyzer(name, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": filters,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to define analyzer %s: %w", name, err)
	}
	return &Analyzer{analyze: a.Analyze}, nil
}

// MustAnalyzer is NewAnalyzer for package-level initialization. It panics on error.
func MustAnalyzer(removeStopWords bool) *Analyzer {
	a, err := NewAnalyzer(removeStopWords)
	if err != nil {
		panic(err)
	}
	return a
}

// Tokens returns the tokens of text in order, skipping tokens shorter than MinTokenLength.
func (a *Analyzer) Tokens(text string) []Token {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	stream := a.analyze([]byte(text))
	out := make([]Token, 0, len(stream))
	for _, tok := range stream {
		if utf8.RuneCount(tok.Term) < MinTokenLength {
			continue
		}
		out = append(out, Token{Term: string(tok.Term), Position: tok.Position})
	}
	return out
}

// Terms returns just the terms of text.
func (a *Analyzer) Terms(text string) []string {
	toks := a.Tokens(text)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Term
	}
	return out
}

// Ngrams builds n-grams of length minN..maxN from tokens that are adjacent in the
// source text. A gap left by a dropped stop word or short token breaks a phrase.
// Output follows first occurrence; n-grams are not de-duplicated.
func Ngrams(tokens []Token, minN, maxN int) []string {
	if minN < 1 {
		minN = 1
	}
	var out []string
	for i := range tokens {
		for n := minN; n <= maxN && i+n <= len(tokens); n++ {
			if !contiguous(tokens[i : i+n]) {
				break
			}
			parts := make([]string, n)
			for j := 0; j < n; j++ {
				parts[j] = tokens[i+j].Term
			}
			out = append(out, strings.Join(parts, " "))
		}
	}
	return out
}

func contiguous(toks []Token) bool {
	for i := 1; i < len(toks); i++ {
		if toks[i].Position != toks[i-1].Position+1 {
			return false
		}
	}
	return true
}
