package ranking

import (
	"strings"

	"github.com/hyperjump/resumatch/internal/models"
)

// FilterByLocation keeps results whose location contains loc, ignoring case.
// An empty loc keeps everything.
func FilterByLocation(results []models.MatchResult, loc string) []models.MatchResult {
	loc = strings.ToLower(strings.TrimSpace(loc))
	if loc == "" {
		return results
	}
	out := make([]models.MatchResult, 0, len(results))
	for _, r := range results {
		if strings.Contains(strings.ToLower(r.Location), loc) {
			out = append(out, r)
		}
	}
	return out
}

// FilterByMinScore keeps results scoring at least min.
func FilterByMinScore(results []models.MatchResult, min float64) []models.MatchResult {
	if min <= 0 {
		return results
	}
	out := make([]models.MatchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= min {
			out = append(out, r)
		}
	}
	return out
}
