package ranking

import (
	"math"
	"sort"

	"github.com/hyperjump/resumatch/internal/textproc"
)

// Vector is a sparse, L2-normalized TF-IDF vector keyed by term.
type Vector map[string]float64

// Vectorizer computes TF-IDF vectors over a corpus fitted in a single call.
// Weights use raw term counts and smoothed idf: ln((1+n)/(1+df)) + 1.
type Vectorizer struct {
	analyzer *textproc.Analyzer
}

// NewVectorizer returns a vectorizer, optionally dropping English stop words.
func NewVectorizer(removeStopWords bool) *Vectorizer {
	return &Vectorizer{analyzer: textproc.MustAnalyzer(removeStopWords)}
}

// FitTransform learns document frequencies from docs and returns one vector per doc.
// A document with no terms gets an empty vector.
func (v *Vectorizer) FitTransform(docs []string) []Vector {
	counts := make([]map[string]int, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		tf := make(map[string]int)
		for _, term := range v.analyzer.Terms(d) {
			tf[term]++
		}
		for term := range tf {
			df[term]++
		}
		counts[i] = tf
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, f := range df {
		idf[term] = math.Log((1+n)/(1+float64(f))) + 1
	}

	out := make([]Vector, len(docs))
	for i, tf := range counts {
		vec := make(Vector, len(tf))
		var norm float64
		for _, term := range sortedTerms(tf) {
			w := float64(tf[term]) * idf[term]
			vec[term] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for term := range vec {
				vec[term] /= norm
			}
		}
		out[i] = vec
	}
	return out
}

// Cosine returns the cosine similarity of a and b, 0 when either is empty.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot, na, nb float64
	for _, term := range sortedTerms(a) {
		x := a[term]
		dot += x * b[term]
		na += x * x
	}
	for _, term := range sortedTerms(b) {
		y := b[term]
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// sortedTerms returns the keys of m in lexical order. Float sums are taken in
// this order so identical documents always get bit-identical scores.
func sortedTerms[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Similarities fits docs = [query] + others and returns the cosine of the query
// vector against each of the others.
func (v *Vectorizer) Similarities(query string, others []string) []float64 {
	docs := make([]string, 0, len(others)+1)
	docs = append(docs, query)
	docs = append(docs, others...)
	vecs := v.FitTransform(docs)
	out := make([]float64, len(others))
	for i := range others {
		out[i] = Cosine(vecs[0], vecs[i+1])
	}
	return out
}
