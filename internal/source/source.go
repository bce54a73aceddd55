// Package source fetches job postings for a search query.
package source

import (
	"context"
	"strings"

	"github.com/hyperjump/resumatch/internal/models"
)

// Source returns postings for a query. Zero results is not an error; an error
// means the source could not be reached and wraps models.ErrSourceUnavailable.
type Source interface {
	Fetch(ctx context.Context, query string, pages int) ([]models.Posting, error)
}

// DefaultPageSize is the number of postings per page when a source has no native paging.
const DefaultPageSize = 25

// NotAvailable is the placeholder for a location that could not be determined.
const NotAvailable = "N/A"

// SplitCompanyLocation splits a scraped "Company, City, Country" line on its first
// comma. Without a comma the whole line is the company and the location is N/A.
func SplitCompanyLocation(s string) (company, location string) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ","); i >= 0 {
		company = strings.TrimSpace(s[:i])
		location = strings.TrimSpace(s[i+1:])
		if location == "" {
			location = NotAvailable
		}
		return company, location
	}
	return s, NotAvailable
}
