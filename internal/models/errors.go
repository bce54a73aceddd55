package models

import "errors"

var (
	// ErrSourceUnavailable is returned when the posting source cannot be reached at all.
	ErrSourceUnavailable = errors.New("posting source unavailable")
	// ErrExtractionFailed is returned when resume text cannot be extracted.
	ErrExtractionFailed = errors.New("resume text extraction failed")
	// ErrStorage wraps persistence failures.
	ErrStorage = errors.New("storage failure")
	// ErrNotFound is returned when a resume, rule, match, or result set does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateRule is returned when an owner registers the same (query, resume) rule twice.
	ErrDuplicateRule = errors.New("monitoring rule already exists")
	// ErrEmptyQuery is returned when a ranking request carries no search query.
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrInvalidScore is returned for a minimum score outside [0,100].
	ErrInvalidScore = errors.New("min_score must be between 0 and 100")
)
