// Package cli provides output writers for the resumatch command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hyperjump/resumatch/internal/matcher"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/pkg/utils"
	"github.com/olekukonko/tablewriter"
)

// OutputFormat is the format for match result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one table row per posting.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCSV is the same CSV the HTTP export serves.
	OutputCSV OutputFormat = "csv"
)

// ParseOutputFormat returns the format named s.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON, OutputCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact, json or csv)", s)
	}
}

// WriteMatchResults writes a result set to w in the given format.
func WriteMatchResults(w io.Writer, rs *models.ResultSet, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rs)
	case OutputCSV:
		return matcher.WriteCSV(w, rs.Results)
	case OutputCompact:
		return writeCompact(w, rs)
	default:
		writeText(w, rs)
		return nil
	}
}

func writeText(w io.Writer, rs *models.ResultSet) {
	fmt.Fprintf(w, "\nFound %d matching postings for %q\n\n", len(rs.Results), rs.Query)
	for i, r := range rs.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "#%d | Score: %.2f\n", i+1, r.Score)
		fmt.Fprintf(w, "%s at %s (%s)\n", r.Title, r.Company, r.Location)
		if r.Link != "" {
			fmt.Fprintf(w, "Link: %s\n", r.Link)
		}
		if r.Description != "" {
			fmt.Fprintf(w, "\n%s\n", TruncateWords(r.Description, 40))
		}
		fmt.Fprintln(w)
	}
}

func writeCompact(w io.Writer, rs *models.ResultSet) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Score", "Title", "Company", "Location")
	for i, r := range rs.Results {
		if err := table.Append(strconv.Itoa(i+1), strconv.FormatFloat(r.Score, 'f', 2, 64),
			utils.Truncate(r.Title, 48), utils.Truncate(r.Company, 32), utils.Truncate(r.Location, 32)); err != nil {
			return err
		}
	}
	return table.Render()
}

// WriteRules writes monitoring rules as a table.
func WriteRules(w io.Writer, rules []*models.MonitoringRule) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Resume", "Query", "Created")
	for _, r := range rules {
		if err := table.Append(r.ID, r.ResumeID, r.Query, r.CreatedAt.Format("2006-01-02 15:04")); err != nil {
			return err
		}
	}
	return table.Render()
}

// WriteResumes writes stored resumes as a table.
func WriteResumes(w io.Writer, resumes []*models.Resume) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Filename", "Uploaded")
	for _, r := range resumes {
		if err := table.Append(r.ID, r.Filename, r.UploadedAt.Format("2006-01-02 15:04")); err != nil {
			return err
		}
	}
	return table.Render()
}

// WriteMatches writes watchlist matches as a table.
func WriteMatches(w io.Writer, matches []*models.WatchlistMatch) error {
	table := tablewriter.NewWriter(w)
	table.Header("Score", "Title", "Company", "Location", "Discovered")
	for _, m := range matches {
		if err := table.Append(strconv.FormatFloat(m.Score, 'f', 2, 64), utils.Truncate(m.Title, 48),
			utils.Truncate(m.Company, 32), m.Location, m.DiscoveredAt.Format("2006-01-02 15:04")); err != nil {
			return err
		}
	}
	return table.Render()
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
