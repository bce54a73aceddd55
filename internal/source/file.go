package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/textproc"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// column aliases accepted in the header row, matched case-insensitively.
var columnAliases = map[string]string{
	"title":            "title",
	"job title":        "title",
	"job_title":        "title",
	"company":          "company",
	"location":         "location",
	"description":      "description",
	"desc":             "description",
	"link":             "link",
	"url":              "link",
	"company_location": "company_location",
	"company location": "company_location",
}

// FileSource serves postings from a CSV or XLSX table. The file is read on every
// Fetch, so edits are visible as soon as any cached result is dropped.
type FileSource struct {
	path     string
	pageSize int
	analyzer *textproc.Analyzer
	logger   *zap.Logger
}

// NewFileSource returns a source over the table at path. pageSize <= 0 uses DefaultPageSize.
func NewFileSource(path string, pageSize int, logger *zap.Logger) *FileSource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{path: path, pageSize: pageSize, analyzer: textproc.MustAnalyzer(true), logger: logger}
}

// Path returns the table path.
func (s *FileSource) Path() string {
	return s.path
}

// Fetch returns up to pages*pageSize rows that mention any word of query in the
// title, company, or description. An empty query matches every row.
func (s *FileSource) Fetch(ctx context.Context, query string, pages int) ([]models.Posting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSourceUnavailable, err)
	}

	limit := 0
	if pages > 0 {
		limit = pages * s.pageSize
	}
	terms := s.analyzer.Terms(query)
	out := make([]models.Posting, 0)
	for _, p := range all {
		if len(terms) > 0 && !s.mentions(p, terms) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	s.logger.Debug("file source fetch",
		zap.String("path", s.path),
		zap.String("query", query),
		zap.Int("rows", len(all)),
		zap.Int("matched", len(out)))
	return out, nil
}

func (s *FileSource) mentions(p models.Posting, terms []string) bool {
	have := make(map[string]struct{})
	for _, t := range s.analyzer.Terms(p.Title + " " + p.Company + " " + p.Description) {
		have[t] = struct{}{}
	}
	for _, t := range terms {
		if _, ok := have[t]; ok {
			return true
		}
	}
	return false
}

func (s *FileSource) load() ([]models.Posting, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".csv":
		rows, err = readCSV(s.path)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(s.path)
	default:
		return nil, fmt.Errorf("unsupported posting table %q", filepath.Ext(s.path))
	}
	if err != nil {
		return nil, err
	}
	return parseRows(rows, s.logger), nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// parseRows maps the header row onto posting fields. Rows without a title are skipped.
func parseRows(rows [][]string, logger *zap.Logger) []models.Posting {
	if len(rows) == 0 {
		return nil
	}
	index := make(map[string]int)
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := columnAliases[key]; ok {
			if _, dup := index[field]; !dup {
				index[field] = i
			}
		}
	}
	cell := func(row []string, field string) string {
		i, ok := index[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]models.Posting, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		p := models.Posting{
			Title:       cell(row, "title"),
			Company:     cell(row, "company"),
			Location:    cell(row, "location"),
			Description: cell(row, "description"),
			Link:        cell(row, "link"),
		}
		if p.Title == "" {
			skipped++
			continue
		}
		if cl := cell(row, "company_location"); cl != "" && p.Company == "" {
			p.Company, p.Location = SplitCompanyLocation(cl)
		}
		if p.Location == "" {
			p.Location = NotAvailable
		}
		out = append(out, p)
	}
	if skipped > 0 {
		logger.Debug("skipped malformed posting rows", zap.Int("count", skipped))
	}
	return out
}
