package models

import "time"

// Resume is an uploaded resume document owned by a user.
type Resume struct {
	ID         string    `json:"id" db:"id"`
	OwnerID    string    `json:"owner_id" db:"owner_id"`
	Filename   string    `json:"filename" db:"filename"`
	Path       string    `json:"-" db:"path"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// MonitoringRule is a saved (query, resume) pair re-checked on every monitoring tick.
type MonitoringRule struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	ResumeID  string    `json:"resume_id" db:"resume_id"`
	Query     string    `json:"query" db:"query"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WatchlistMatch is a posting recorded for a rule by the monitoring scheduler.
// It is never mutated after creation.
type WatchlistMatch struct {
	ID     string `json:"id" db:"id"`
	RuleID string `json:"rule_id" db:"rule_id"`
	Posting
	Score        float64   `json:"score" db:"score"`
	DiscoveredAt time.Time `json:"discovered_at" db:"discovered_at"`
}
