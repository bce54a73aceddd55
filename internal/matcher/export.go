package matcher

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/hyperjump/resumatch/internal/models"
)

var csvHeader = []string{"title", "company", "location", "description", "link", "match_score"}

// WriteCSV writes results as CSV with a header row. Scores keep two decimals.
func WriteCSV(w io.Writer, results []models.MatchResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{r.Title, r.Company, r.Location, r.Description, r.Link, strconv.FormatFloat(r.Score, 'f', 2, 64)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
