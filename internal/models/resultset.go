package models

import "time"

// ResultSet is the ranked output of one interactive ranking call. It is scoped
// to the request that produced it and addressed by ID for later pagination.
type ResultSet struct {
	ID        string        `json:"id"`
	Query     string        `json:"query"`
	Results   []MatchResult `json:"results"`
	CreatedAt time.Time     `json:"created_at"`
}

// Page is one page of a result set.
type Page struct {
	ResultID   string        `json:"result_id,omitempty"`
	Query      string        `json:"query,omitempty"`
	Items      []MatchResult `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
	Total      int           `json:"total"`
	// Offset is the index of the first item within the full result set.
	Offset int `json:"offset"`
}

// Page returns the 1-based page of size pageSize. Pages past the end are empty.
func (rs *ResultSet) Page(page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = 10
	}
	if page < 1 {
		page = 1
	}
	total := len(rs.Results)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	items := rs.Results[start:end]
	if items == nil {
		items = []MatchResult{}
	}
	return Page{
		ResultID:   rs.ID,
		Query:      rs.Query,
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
		Total:      total,
		Offset:     start,
	}
}
