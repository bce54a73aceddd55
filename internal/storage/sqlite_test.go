package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/resumatch/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedRule(t *testing.T, store *SQLiteStorage, owner, query string) (*models.Resume, *models.MonitoringRule) {
	t.Helper()
	ctx := context.Background()
	resume := &models.Resume{OwnerID: owner, Filename: "cv.pdf", Path: "/tmp/cv.pdf"}
	if err := store.CreateResume(ctx, resume); err != nil {
		t.Fatal(err)
	}
	rule := &models.MonitoringRule{OwnerID: owner, ResumeID: resume.ID, Query: query}
	if err := store.CreateRule(ctx, rule); err != nil {
		t.Fatal(err)
	}
	return resume, rule
}

func TestSQLiteStorage_Resumes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := &models.Resume{OwnerID: "alice", Filename: "cv.pdf", Path: "/data/cv.pdf"}
	if err := store.CreateResume(ctx, r); err != nil {
		t.Fatal(err)
	}
	if r.ID == "" || r.UploadedAt.IsZero() {
		t.Fatalf("expected ID and UploadedAt to be set, got %+v", r)
	}

	got, err := store.GetResume(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "cv.pdf" || got.Path != "/data/cv.pdf" || got.OwnerID != "alice" {
		t.Errorf("got %+v", got)
	}

	list, err := store.ListResumes(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 resume, got %d", len(list))
	}
	if other, _ := store.ListResumes(ctx, "bob"); len(other) != 0 {
		t.Errorf("bob should see no resumes, got %d", len(other))
	}

	if err := store.DeleteResume(ctx, "bob", r.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("deleting another owner's resume: expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteResume(ctx, "alice", r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetResume(ctx, r.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStorage_CreateRule(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	resume, rule := seedRule(t, store, "alice", "  Python   Developer ")
	if rule.Query != "python developer" {
		t.Errorf("query should be normalized, got %q", rule.Query)
	}

	dup := &models.MonitoringRule{OwnerID: "alice", ResumeID: resume.ID, Query: "PYTHON developer"}
	if err := store.CreateRule(ctx, dup); !errors.Is(err, models.ErrDuplicateRule) {
		t.Errorf("expected ErrDuplicateRule, got %v", err)
	}

	orphan := &models.MonitoringRule{OwnerID: "alice", ResumeID: "no-such-resume", Query: "go"}
	if err := store.CreateRule(ctx, orphan); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown resume, got %v", err)
	}

	got, err := store.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ResumeID != resume.ID {
		t.Errorf("got %+v", got)
	}

	seedRule(t, store, "bob", "designer")
	all, err := store.ListAllRules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 rules across owners, got %d", len(all))
	}
	mine, _ := store.ListRules(ctx, "alice")
	if len(mine) != 1 {
		t.Errorf("expected 1 rule for alice, got %d", len(mine))
	}
}

func TestSQLiteStorage_InsertMatchIfNew(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, rule := seedRule(t, store, "alice", "python")

	m := &models.WatchlistMatch{RuleID: rule.ID, Posting: models.Posting{Title: "Python Dev", Company: "Acme", Location: "Lahore"}, Score: 72.5}
	inserted, err := store.InsertMatchIfNew(ctx, m)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	again := &models.WatchlistMatch{RuleID: rule.ID, Posting: models.Posting{Title: "Python Dev", Company: "Acme"}, Score: 90}
	inserted, err = store.InsertMatchIfNew(ctx, again)
	if err != nil || inserted {
		t.Fatalf("duplicate insert: inserted=%v err=%v", inserted, err)
	}

	matches, err := store.ListMatchesByRule(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Score != 72.5 || matches[0].Location != "Lahore" {
		t.Errorf("expected original match kept, got %+v", matches)
	}

	_, err = store.InsertMatchIfNew(ctx, &models.WatchlistMatch{RuleID: "missing", Posting: models.Posting{Title: "x"}})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown rule: expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_InsertMatchIfNew_Concurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, rule := seedRule(t, store, "alice", "python")

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.InsertMatchIfNew(ctx, &models.WatchlistMatch{RuleID: rule.ID, Posting: models.Posting{Title: "Same", Company: "Co"}, Score: 1})
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if inserted != 1 {
		t.Errorf("expected exactly one insert, got %d", inserted)
	}
}

func TestSQLiteStorage_WatchlistByOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, rule := seedRule(t, store, "alice", "python")
	_, other := seedRule(t, store, "bob", "design")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		m := &models.WatchlistMatch{
			RuleID:       rule.ID,
			Posting:      models.Posting{Title: fmt.Sprintf("Job %d", i), Company: "Acme"},
			Score:        50,
			DiscoveredAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := store.InsertMatchIfNew(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.InsertMatchIfNew(ctx, &models.WatchlistMatch{RuleID: other.ID, Posting: models.Posting{Title: "Designer"}}); err != nil {
		t.Fatal(err)
	}

	n, err := store.CountMatchesByOwner(ctx, "alice")
	if err != nil || n != 12 {
		t.Fatalf("CountMatchesByOwner = %d, %v", n, err)
	}
	page, err := store.ListMatchesByOwner(ctx, "alice", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 10 || page[0].Title != "Job 11" {
		t.Errorf("expected newest first page of 10, got %d starting %q", len(page), page[0].Title)
	}
	rest, _ := store.ListMatchesByOwner(ctx, "alice", 10, 10)
	if len(rest) != 2 || rest[1].Title != "Job 0" {
		t.Errorf("expected 2 remaining ending with Job 0, got %d", len(rest))
	}

	if err := store.DeleteMatch(ctx, "bob", page[0].ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("bob deleting alice's match: expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteMatch(ctx, "alice", page[0].ID); err != nil {
		t.Fatal(err)
	}
	n, _ = store.CountMatchesByOwner(ctx, "alice")
	if n != 11 {
		t.Errorf("expected 11 after delete, got %d", n)
	}
}

func TestSQLiteStorage_CascadeDeletes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	resume, rule := seedRule(t, store, "alice", "python")
	_, rule2 := seedRule(t, store, "alice", "golang")
	for _, r := range []*models.MonitoringRule{rule, rule2} {
		if _, err := store.InsertMatchIfNew(ctx, &models.WatchlistMatch{RuleID: r.ID, Posting: models.Posting{Title: "Job", Company: "Co"}}); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.DeleteRule(ctx, "alice", rule2.ID); err != nil {
		t.Fatal(err)
	}
	c, err := store.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.Rules != 1 || c.Matches != 1 {
		t.Errorf("after rule delete: %+v", c)
	}

	if err := store.DeleteResume(ctx, "alice", resume.ID); err != nil {
		t.Fatal(err)
	}
	c, _ = store.Counts(ctx)
	if c.Resumes != 1 || c.Rules != 0 || c.Matches != 0 {
		t.Errorf("after resume delete, rules and matches should cascade: %+v", c)
	}
}
