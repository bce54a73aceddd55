// Package models defines core data structures for postings, match results, and monitoring.
package models

import "strings"

// Posting is a single job listing produced by a posting source. Postings are
// treated as immutable once fetched.
type Posting struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// Identity returns the dedup key for the posting: the (title, company) pair.
func (p Posting) Identity() PostingKey {
	return PostingKey{Title: p.Title, Company: p.Company}
}

// Combined returns the text a posting is ranked on: title followed by description.
func (p Posting) Combined() string {
	return p.Title + " " + p.Description
}

// PostingKey identifies a posting for de-duplication.
type PostingKey struct {
	Title   string
	Company string
}

// UniquePostings returns postings with repeated identities removed, keeping the
// first occurrence and the input order.
func UniquePostings(postings []Posting) []Posting {
	seen := make(map[PostingKey]struct{}, len(postings))
	out := make([]Posting, 0, len(postings))
	for _, p := range postings {
		key := p.Identity()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// MatchResult is a posting scored against a resume. Score is in [0,100].
type MatchResult struct {
	Posting
	Score float64 `json:"score"`
}

// RankRequest is the input of an interactive ranking call.
type RankRequest struct {
	ResumeText string  `json:"resume_text"`
	Query      string  `json:"query"`
	Location   string  `json:"location,omitempty"`
	MinScore   float64 `json:"min_score,omitempty"`
	TopN       int     `json:"top_n,omitempty"`
}

// Validate checks the request and applies defaults. An empty resume is allowed
// (scores degrade toward zero); an empty query is not.
func (r *RankRequest) Validate(defaultTopN int) error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return ErrEmptyQuery
	}
	if r.MinScore < 0 || r.MinScore > 100 {
		return ErrInvalidScore
	}
	if r.TopN <= 0 {
		r.TopN = defaultTopN
	}
	return nil
}
