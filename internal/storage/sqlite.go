package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/pkg/utils"
)

// SQLiteStorage implements Storage using SQLite. Writes are serialized so the
// check-then-insert of watchlist matches cannot race.
type SQLiteStorage struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS resumes (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		path TEXT NOT NULL,
		uploaded_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resumes_owner ON resumes(owner_id, uploaded_at);

	CREATE TABLE IF NOT EXISTS monitoring_rules (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		resume_id TEXT NOT NULL,
		query TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (resume_id) REFERENCES resumes(id) ON DELETE CASCADE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_rules_owner_resume_query ON monitoring_rules(owner_id, resume_id, query);

	CREATE TABLE IF NOT EXISTS watchlist_matches (
		id TEXT PRIMARY KEY,
		rule_id TEXT NOT NULL,
		title TEXT NOT NULL,
		company TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL,
		discovered_at TIMESTAMP NOT NULL,
		FOREIGN KEY (rule_id) REFERENCES monitoring_rules(id) ON DELETE CASCADE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_rule_identity ON watchlist_matches(rule_id, title, company);
	CREATE INDEX IF NOT EXISTS idx_matches_discovered ON watchlist_matches(discovered_at);
	`
	_, err := db.Exec(schema)
	return err
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrStorage, op, err)
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == code
}

// CreateResume inserts a resume, assigning an ID and upload time when unset.
func (s *SQLiteStorage) CreateResume(ctx context.Context, r *models.Resume) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.UploadedAt.IsZero() {
		r.UploadedAt = time.Now().UTC()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resumes (id, owner_id, filename, path, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.OwnerID, r.Filename, r.Path, r.UploadedAt,
	)
	if err != nil {
		return storageErr("create resume", err)
	}
	return nil
}

// GetResume returns a resume by ID.
func (s *SQLiteStorage) GetResume(ctx context.Context, id string) (*models.Resume, error) {
	var r models.Resume
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, filename, path, uploaded_at FROM resumes WHERE id = ?`, id,
	).Scan(&r.ID, &r.OwnerID, &r.Filename, &r.Path, &r.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resume %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get resume", err)
	}
	return &r, nil
}

// ListResumes returns an owner's resumes, newest first.
func (s *SQLiteStorage) ListResumes(ctx context.Context, ownerID string) ([]*models.Resume, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, filename, path, uploaded_at FROM resumes
		 WHERE owner_id = ? ORDER BY uploaded_at DESC, rowid DESC`, ownerID,
	)
	if err != nil {
		return nil, storageErr("list resumes", err)
	}
	defer rows.Close()

	out := make([]*models.Resume, 0)
	for rows.Next() {
		var r models.Resume
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Filename, &r.Path, &r.UploadedAt); err != nil {
			return nil, storageErr("scan resume", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list resumes", err)
	}
	return out, nil
}

// DeleteResume removes an owner's resume; its rules and their matches cascade.
func (s *SQLiteStorage) DeleteResume(ctx context.Context, ownerID, id string) error {
	return s.deleteOwned(ctx, "resume", `DELETE FROM resumes WHERE id = ? AND owner_id = ?`, id, ownerID)
}

func (s *SQLiteStorage) deleteOwned(ctx context.Context, kind, query, id, ownerID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return storageErr("delete "+kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return nil
}

// CreateRule registers a rule. The query is stored normalized (lowercase, single
// spaces). Registering the same query for the same resume twice returns
// models.ErrDuplicateRule; an unknown resume returns models.ErrNotFound.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *models.MonitoringRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	rule.Query = utils.NormalizeKey(rule.Query)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO monitoring_rules (id, owner_id, resume_id, query, created_at) VALUES (?, ?, ?, ?, ?)`,
		rule.ID, rule.OwnerID, rule.ResumeID, rule.Query, rule.CreatedAt,
	)
	switch {
	case err == nil:
		return nil
	case isConstraint(err, sqlite3.ErrConstraintUnique):
		return fmt.Errorf("rule %q: %w", rule.Query, models.ErrDuplicateRule)
	case isConstraint(err, sqlite3.ErrConstraintForeignKey):
		return fmt.Errorf("resume %s: %w", rule.ResumeID, models.ErrNotFound)
	default:
		return storageErr("create rule", err)
	}
}

const ruleColumns = `id, owner_id, resume_id, query, created_at`

func scanRule(sc interface{ Scan(...any) error }) (*models.MonitoringRule, error) {
	var r models.MonitoringRule
	if err := sc.Scan(&r.ID, &r.OwnerID, &r.ResumeID, &r.Query, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRule returns a rule by ID.
func (s *SQLiteStorage) GetRule(ctx context.Context, id string) (*models.MonitoringRule, error) {
	r, err := scanRule(s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM monitoring_rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get rule", err)
	}
	return r, nil
}

// ListRules returns an owner's rules, oldest first.
func (s *SQLiteStorage) ListRules(ctx context.Context, ownerID string) ([]*models.MonitoringRule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM monitoring_rules WHERE owner_id = ? ORDER BY created_at, rowid`, ownerID)
}

// ListAllRules returns every rule of every owner, oldest first.
func (s *SQLiteStorage) ListAllRules(ctx context.Context) ([]*models.MonitoringRule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM monitoring_rules ORDER BY created_at, rowid`)
}

func (s *SQLiteStorage) queryRules(ctx context.Context, query string, args ...any) ([]*models.MonitoringRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list rules", err)
	}
	defer rows.Close()

	out := make([]*models.MonitoringRule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, storageErr("scan rule", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list rules", err)
	}
	return out, nil
}

// DeleteRule removes an owner's rule and, by cascade, its matches.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, ownerID, id string) error {
	return s.deleteOwned(ctx, "rule", `DELETE FROM monitoring_rules WHERE id = ? AND owner_id = ?`, id, ownerID)
}

// InsertMatchIfNew records m unless the rule already has a match with the same
// (title, company). It reports whether a row was inserted.
func (s *SQLiteStorage) InsertMatchIfNew(ctx context.Context, m *models.WatchlistMatch) (bool, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.DiscoveredAt.IsZero() {
		m.DiscoveredAt = time.Now().UTC()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storageErr("begin insert match", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO watchlist_matches
		   (id, rule_id, title, company, location, description, link, score, discovered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(rule_id, title, company) DO NOTHING`,
		m.ID, m.RuleID, m.Title, m.Company, m.Location, m.Description, m.Link, m.Score, m.DiscoveredAt,
	)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return false, fmt.Errorf("rule %s: %w", m.RuleID, models.ErrNotFound)
		}
		return false, storageErr("insert match", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("insert match", err)
	}
	if err := tx.Commit(); err != nil {
		return false, storageErr("commit insert match", err)
	}
	return n > 0, nil
}

const matchColumns = `m.id, m.rule_id, m.title, m.company, m.location, m.description, m.link, m.score, m.discovered_at`

func (s *SQLiteStorage) queryMatches(ctx context.Context, query string, args ...any) ([]*models.WatchlistMatch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list matches", err)
	}
	defer rows.Close()

	out := make([]*models.WatchlistMatch, 0)
	for rows.Next() {
		var m models.WatchlistMatch
		if err := rows.Scan(&m.ID, &m.RuleID, &m.Title, &m.Company, &m.Location, &m.Description, &m.Link, &m.Score, &m.DiscoveredAt); err != nil {
			return nil, storageErr("scan match", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list matches", err)
	}
	return out, nil
}

// ListMatchesByRule returns a rule's matches, best score first.
func (s *SQLiteStorage) ListMatchesByRule(ctx context.Context, ruleID string) ([]*models.WatchlistMatch, error) {
	return s.queryMatches(ctx,
		`SELECT `+matchColumns+` FROM watchlist_matches m WHERE m.rule_id = ?
		 ORDER BY m.score DESC, m.discovered_at DESC`, ruleID)
}

// ListMatchesByOwner returns matches across all of an owner's rules, newest first.
func (s *SQLiteStorage) ListMatchesByOwner(ctx context.Context, ownerID string, offset, limit int) ([]*models.WatchlistMatch, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryMatches(ctx,
		`SELECT `+matchColumns+` FROM watchlist_matches m
		 JOIN monitoring_rules r ON r.id = m.rule_id
		 WHERE r.owner_id = ?
		 ORDER BY m.discovered_at DESC, m.rowid DESC
		 LIMIT ? OFFSET ?`, ownerID, limit, offset)
}

// CountMatchesByOwner returns the number of matches across an owner's rules.
func (s *SQLiteStorage) CountMatchesByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watchlist_matches m JOIN monitoring_rules r ON r.id = m.rule_id WHERE r.owner_id = ?`,
		ownerID,
	).Scan(&n)
	if err != nil {
		return 0, storageErr("count matches", err)
	}
	return n, nil
}

// DeleteMatch removes a single match belonging to one of the owner's rules.
func (s *SQLiteStorage) DeleteMatch(ctx context.Context, ownerID, id string) error {
	return s.deleteOwned(ctx, "match",
		`DELETE FROM watchlist_matches WHERE id = ?
		 AND rule_id IN (SELECT id FROM monitoring_rules WHERE owner_id = ?)`, id, ownerID)
}

// Counts returns the number of rows in each table.
func (s *SQLiteStorage) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM resumes), (SELECT COUNT(*) FROM monitoring_rules), (SELECT COUNT(*) FROM watchlist_matches)`,
	).Scan(&c.Resumes, &c.Rules, &c.Matches)
	if err != nil {
		return Counts{}, storageErr("counts", err)
	}
	return c, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

var _ Storage = (*SQLiteStorage)(nil)
