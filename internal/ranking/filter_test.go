package ranking

import (
	"testing"

	"github.com/hyperjump/resumatch/internal/models"
)

func TestFilterByLocation(t *testing.T) {
	results := []models.MatchResult{
		{Posting: models.Posting{Title: "a", Location: "Lahore, Pakistan"}},
		{Posting: models.Posting{Title: "b", Location: "Karachi"}},
		{Posting: models.Posting{Title: "c", Location: "N/A"}},
	}
	got := FilterByLocation(results, " lahore ")
	if len(got) != 1 || got[0].Title != "a" {
		t.Errorf("FilterByLocation(lahore) = %v", got)
	}
	if got := FilterByLocation(results, ""); len(got) != 3 {
		t.Errorf("empty location should keep all, got %d", len(got))
	}
	for _, r := range FilterByLocation(results, "KARACHI") {
		if r.Title != "b" {
			t.Errorf("unexpected match %q", r.Title)
		}
	}
}

func TestFilterByMinScore(t *testing.T) {
	results := []models.MatchResult{{Score: 80}, {Score: 50}, {Score: 49.9}}
	if got := FilterByMinScore(results, 50); len(got) != 2 {
		t.Errorf("expected 2 results >= 50, got %d", len(got))
	}
	if got := FilterByMinScore(results, 0); len(got) != 3 {
		t.Errorf("min 0 should keep all, got %d", len(got))
	}
}
