package models

import (
	"fmt"
	"strings"
	"testing"
)

func TestResultSet_Page(t *testing.T) {
	rs := &ResultSet{ID: "r1"}
	for i := 0; i < 23; i++ {
		rs.Results = append(rs.Results, MatchResult{Posting: Posting{Title: fmt.Sprintf("job %d", i)}})
	}
	tests := []struct {
		name      string
		page      int
		wantItems int
		wantFirst string
	}{
		{"first page", 1, 10, "job 0"},
		{"last partial page", 3, 3, "job 20"},
		{"past the end", 5, 0, ""},
		{"zero clamps to first", 0, 10, "job 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := rs.Page(tt.page, 10)
			if len(p.Items) != tt.wantItems {
				t.Fatalf("items: got %d, want %d", len(p.Items), tt.wantItems)
			}
			if p.TotalPages != 3 || p.Total != 23 {
				t.Errorf("totals: got pages=%d total=%d", p.TotalPages, p.Total)
			}
			if tt.wantItems > 0 && p.Items[0].Title != tt.wantFirst {
				t.Errorf("first item: got %q, want %q", p.Items[0].Title, tt.wantFirst)
			}
		})
	}
}

func TestRankRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     RankRequest
		wantErr error
	}{
		{"empty query", RankRequest{Query: "  "}, ErrEmptyQuery},
		{"negative min score", RankRequest{Query: "go", MinScore: -1}, ErrInvalidScore},
		{"valid", RankRequest{Query: " go developer "}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(100)
			if err != tt.wantErr {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil {
				if tt.req.TopN != 100 {
					t.Errorf("expected default top_n 100, got %d", tt.req.TopN)
				}
				if tt.req.Query != "go developer" {
					t.Errorf("expected trimmed query, got %q", tt.req.Query)
				}
			}
		})
	}
}

func TestPosting_IdentityAndCombined(t *testing.T) {
	p := Posting{Title: "Go Developer", Company: "Acme", Description: "backend"}
	if p.Identity() != (PostingKey{Title: "Go Developer", Company: "Acme"}) {
		t.Errorf("identity: got %+v", p.Identity())
	}
	if p.Combined() != "Go Developer backend" {
		t.Errorf("combined: got %q", p.Combined())
	}
}

func TestUniquePostings(t *testing.T) {
	in := []Posting{
		{Title: "Go Developer", Company: "Acme", Link: "a"},
		{Title: "Go Developer", Company: "Globex", Link: "b"},
		{Title: "Go Developer", Company: "Acme", Link: "c"},
		{Title: "SRE", Company: "Acme", Link: "d"},
	}
	got := UniquePostings(in)
	var links []string
	for _, p := range got {
		links = append(links, p.Link)
	}
	if strings.Join(links, ",") != "a,b,d" {
		t.Errorf("links = %v, want [a b d]", links)
	}
	if got := UniquePostings(nil); got == nil || len(got) != 0 {
		t.Errorf("nil input: got %#v", got)
	}
}
