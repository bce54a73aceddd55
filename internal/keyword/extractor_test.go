package keyword

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/resumatch/internal/embedding"
	"github.com/hyperjump/resumatch/internal/textproc"
)

func TestExtractor_Extract(t *testing.T) {
	x := NewExtractor(embedding.NewHashingEmbedder(embedding.DefaultDimensions))
	text := "Python developer. Python, Django and Python REST APIs. Some Docker."
	kws, err := x.Extract(context.Background(), text, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(kws) != 3 {
		t.Fatalf("expected 3 keywords, got %v", kws)
	}
	if kws[0].Phrase != "python" {
		t.Errorf("expected the most frequent term first, got %q", kws[0].Phrase)
	}
	for i := 1; i < len(kws); i++ {
		if kws[i].Score > kws[i-1].Score {
			t.Errorf("keywords not sorted by score: %v", kws)
		}
	}
}

func TestExtractor_EmptyText(t *testing.T) {
	x := NewExtractor(embedding.NewHashingEmbedder(16))
	kws, err := x.Extract(context.Background(), "  the and of ", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(kws) != 0 {
		t.Errorf("expected no keywords, got %v", kws)
	}
	s, err := x.KeywordString(context.Background(), "", 5)
	if err != nil || s != "" {
		t.Errorf("KeywordString(\"\") = %q, %v", s, err)
	}
}

func TestExtractor_DefaultCountCaps(t *testing.T) {
	x := NewExtractor(embedding.NewHashingEmbedder(64), WithMaxNgram(1))
	var words []string
	for i := 0; i < 50; i++ {
		words = append(words, "term"+strings.Repeat("x", i+1))
	}
	kws, err := x.Extract(context.Background(), strings.Join(words, " "), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(kws) != DefaultCount {
		t.Errorf("expected %d keywords, got %d", DefaultCount, len(kws))
	}
}

type failingEmbedder struct{ *embedding.HashingEmbedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model offline")
}

func TestExtractor_EmbedError(t *testing.T) {
	x := NewExtractor(failingEmbedder{embedding.NewHashingEmbedder(8)})
	if _, err := x.Extract(context.Background(), "golang kafka", 2); err == nil {
		t.Fatal("expected error from embedder")
	}
}

func TestCandidates(t *testing.T) {
	a := textproc.MustAnalyzer(true)
	got := Candidates(a.Tokens("go developer, go developer"), 2)
	want := []string{"go", "go developer", "developer", "developer go"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Candidates() = %v, want %v", got, want)
	}
}
