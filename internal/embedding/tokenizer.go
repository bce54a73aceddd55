package embedding

import (
	"github.com/cespare/xxhash/v2"
	"github.com/hyperjump/resumatch/internal/textproc"
)

// DefaultMaxTokens is the sequence length fed to the ONNX model.
const DefaultMaxTokens = 256

const (
	clsToken   = 101
	sepToken   = 102
	vocabStart = 1000
	vocabSize  = 30522
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// HashTokenizer maps analyzer terms onto the model vocabulary range by hashing.
// It needs no vocab file, at the cost of colliding unrelated words.
type HashTokenizer struct {
	analyzer *textproc.Analyzer
}

// NewHashTokenizer returns a tokenizer that keeps stop words, since sentence models
// are trained on full text.
func NewHashTokenizer() *HashTokenizer {
	return &HashTokenizer{analyzer: textproc.MustAnalyzer(false)}
}

// Tokenize produces [CLS] terms... [SEP] padded to maxTokens.
func (t *HashTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 2 {
		maxTokens = DefaultMaxTokens
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsToken
	attentionMask[0] = 1

	pos := 1
	for _, term := range t.analyzer.Terms(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = TokenID(term)
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = sepToken
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// TokenID returns the hashed vocabulary id of term, outside the special-token range.
func TokenID(term string) int64 {
	return vocabStart + int64(xxhash.Sum64String(term)%(vocabSize-vocabStart))
}
