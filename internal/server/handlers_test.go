package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/resumatch/internal/config"
	"github.com/hyperjump/resumatch/internal/embedding"
	"github.com/hyperjump/resumatch/internal/extract"
	"github.com/hyperjump/resumatch/internal/keyword"
	"github.com/hyperjump/resumatch/internal/matcher"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/monitor"
	"github.com/hyperjump/resumatch/internal/ranking"
	"github.com/hyperjump/resumatch/internal/storage"
	"go.uber.org/zap"
)

type stubSource struct {
	postings []models.Posting
	err      error
}

func (s *stubSource) Fetch(_ context.Context, _ string, _ int) ([]models.Posting, error) {
	return s.postings, s.err
}

type stubMonitor struct{}

func (stubMonitor) Running() bool { return true }
func (stubMonitor) LastReport() monitor.TickReport {
	return monitor.TickReport{Rules: 3, NewMatches: 2}
}

var testPostings = []models.Posting{
	{Title: "Graphic Designer", Company: "Studio", Location: "Karachi", Description: "Photoshop Illustrator branding"},
	{Title: "Python Developer", Company: "Acme", Location: "Lahore", Description: "Django AWS backend services"},
	{Title: "Data Engineer", Company: "Beta", Location: "Remote", Description: "Python Spark pipelines"},
}

const pythonResume = "Senior Python Developer, Django, AWS backend services"

type testEnv struct {
	srv    *Server
	store  *storage.SQLiteStorage
	src    *stubSource
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(dir + "/db.sqlite")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	src := &stubSource{postings: testPostings}
	x := keyword.NewExtractor(embedding.NewHashingEmbedder(embedding.DefaultDimensions))
	svc := matcher.NewService(src, ranking.NewRanker(x, nil), x, matcher.NewResultStore(0, 0), matcher.Config{}, nil)

	cfg := &config.Config{Source: config.SourceConfig{Path: dir + "/jobs.csv"}}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = dir + "/db.sqlite"
	cfg.Storage.UploadDir = dir + "/uploads"
	cfg.Matching.PageSize = 2

	srv := NewServer(svc, store, extract.NewExtractor(), cfg, zap.NewNop(), WithMonitor(stubMonitor{}))
	return &testEnv{srv: srv, store: store, src: src, router: srv.Routes()}
}

func (e *testEnv) do(t *testing.T, method, path, owner string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if owner != "" {
		r.Header.Set(OwnerHeader, owner)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func (e *testEnv) upload(t *testing.T, owner, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	r.Header.Set(OwnerHeader, owner)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleMatch_pagesAndResults(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/match", "", map[string]interface{}{
		"resume_text": pythonResume,
		"query":       "developer",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var page models.Page
	decode(t, w, &page)
	if page.ResultID == "" {
		t.Fatal("result_id should be set")
	}
	if page.Total != 3 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected first page: %+v", page)
	}
	if page.Items[0].Title != "Python Developer" {
		t.Errorf("top result: got %q", page.Items[0].Title)
	}

	w = env.do(t, http.MethodGet, "/api/v1/results/"+page.ResultID+"?page=2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("page 2 status: got %d", w.Code)
	}
	var second models.Page
	decode(t, w, &second)
	if second.Page != 2 || len(second.Items) != 1 || second.Offset != 2 {
		t.Errorf("unexpected second page: %+v", second)
	}

	w = env.do(t, http.MethodGet, "/api/v1/results/"+page.ResultID+"?page=9", "", nil)
	var empty models.Page
	decode(t, w, &empty)
	if empty.Items == nil || len(empty.Items) != 0 {
		t.Errorf("page past the end should be empty, got %+v", empty.Items)
	}

	w = env.do(t, http.MethodGet, "/api/v1/results/"+page.ResultID+"/jobs/0", "", nil)
	var job models.MatchResult
	decode(t, w, &job)
	if job.Title != "Python Developer" {
		t.Errorf("job 0: got %q", job.Title)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/results/"+page.ResultID+"/jobs/3", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("job out of range: got %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/results/"+page.ResultID+"/export.csv", "", nil)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type: got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 4 || lines[0] != "title,company,location,description,link,match_score" {
		t.Errorf("unexpected csv: %q", w.Body.String())
	}
}

func TestHandleMatch_errors(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      interface{}
		sourceErr error
		want      int
	}{
		{"no resume", "/api/v1/match", map[string]string{"query": "dev"}, nil, http.StatusBadRequest},
		{"empty query", "/api/v1/match", map[string]string{"resume_text": pythonResume, "query": "  "}, nil, http.StatusBadRequest},
		{"bad score", "/api/v1/match", map[string]interface{}{"resume_text": pythonResume, "query": "dev", "min_score": 120}, nil, http.StatusBadRequest},
		{"source down", "/api/v1/match", map[string]string{"resume_text": pythonResume, "query": "dev"}, models.ErrSourceUnavailable, http.StatusBadGateway},
		{"unknown resume", "/api/v1/match", map[string]string{"resume_id": "missing", "query": "dev"}, nil, http.StatusNotFound},
		{"auto with empty resume", "/api/v1/match/auto", map[string]string{"resume_text": "a"}, nil, http.StatusBadRequest},
		{"invalid json", "/api/v1/match", "not an object", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.src.err = tt.sourceErr
			w := env.do(t, http.MethodPost, tt.path, "alice", tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d, body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHandleResult_unknownAndBadPage(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/api/v1/results/nope", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown result: got %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/results/nope?page=zero", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad page: got %d, want 400", w.Code)
	}
}

func TestHandleMatchAutoAndDetect(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/detect-query", "", map[string]string{"resume_text": "python python python django developer"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]string
	decode(t, w, &out)
	if out["query"] == "" {
		t.Error("expected a detected query")
	}

	w = env.do(t, http.MethodPost, "/api/v1/match/auto", "", map[string]string{"resume_text": pythonResume})
	if w.Code != http.StatusOK {
		t.Fatalf("auto status: got %d, body: %s", w.Code, w.Body.String())
	}
	var page models.Page
	decode(t, w, &page)
	if page.Query == "" || page.Total == 0 {
		t.Errorf("unexpected auto page: %+v", page)
	}
}

func TestResumesAndRules(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodGet, "/api/v1/resumes", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing owner: got %d, want 401", w.Code)
	}
	if w := env.upload(t, "alice", "resume.exe", "MZ"); w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("unsupported upload: got %d, want 415", w.Code)
	}

	w := env.upload(t, "alice", "resume.txt", pythonResume)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: got %d, body: %s", w.Code, w.Body.String())
	}
	var res models.Resume
	decode(t, w, &res)
	if res.ID == "" || res.Filename != "resume.txt" || res.OwnerID != "alice" {
		t.Fatalf("unexpected resume: %+v", res)
	}

	w = env.do(t, http.MethodGet, "/api/v1/resumes", "alice", nil)
	var list struct {
		Resumes []models.Resume `json:"resumes"`
	}
	decode(t, w, &list)
	if len(list.Resumes) != 1 {
		t.Errorf("resumes: got %d, want 1", len(list.Resumes))
	}

	w = env.do(t, http.MethodPost, "/api/v1/match", "alice", map[string]string{"resume_id": res.ID, "query": "developer"})
	if w.Code != http.StatusOK {
		t.Errorf("match by resume id: got %d, body: %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodPost, "/api/v1/match", "bob", map[string]string{"resume_id": res.ID, "query": "developer"}); w.Code != http.StatusNotFound {
		t.Errorf("match with another owner's resume: got %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/rules", "alice", map[string]string{"resume_id": res.ID, "query": "Python Developer"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create rule: got %d, body: %s", w.Code, w.Body.String())
	}
	var rule models.MonitoringRule
	decode(t, w, &rule)
	if rule.Query != "python developer" {
		t.Errorf("rule query should be normalized, got %q", rule.Query)
	}

	if w := env.do(t, http.MethodPost, "/api/v1/rules", "alice", map[string]string{"resume_id": res.ID, "query": "python  developer"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate rule: got %d, want 409", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/rules", "alice", map[string]string{"resume_id": res.ID, "query": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty rule query: got %d, want 400", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/rules", "bob", map[string]string{"resume_id": res.ID, "query": "golang"}); w.Code != http.StatusNotFound {
		t.Errorf("rule on another owner's resume: got %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/rules", "alice", nil)
	var rules struct {
		Rules []models.MonitoringRule `json:"rules"`
	}
	decode(t, w, &rules)
	if len(rules.Rules) != 1 {
		t.Errorf("rules: got %d, want 1", len(rules.Rules))
	}

	if w := env.do(t, http.MethodGet, "/api/v1/rules/"+rule.ID+"/matches", "alice", nil); w.Code != http.StatusOK {
		t.Errorf("rule matches: got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/rules/"+rule.ID+"/matches", "bob", nil); w.Code != http.StatusNotFound {
		t.Errorf("rule matches for another owner: got %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/rules/"+rule.ID, "bob", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete another owner's rule: got %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/rules/"+rule.ID, "alice", nil); w.Code != http.StatusOK {
		t.Errorf("delete rule: got %d", w.Code)
	}

	if w := env.do(t, http.MethodDelete, "/api/v1/resumes/"+res.ID, "alice", nil); w.Code != http.StatusOK {
		t.Errorf("delete resume: got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/resumes/"+res.ID, "alice", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete resume twice: got %d, want 404", w.Code)
	}
}

func TestHandleResumeFile(t *testing.T) {
	env := newTestEnv(t)
	w := env.upload(t, "alice", "resume.txt", pythonResume)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: got %d, body: %s", w.Code, w.Body.String())
	}
	var res models.Resume
	decode(t, w, &res)
	path := "/api/v1/resumes/" + res.ID + "/file"

	w = env.do(t, http.MethodGet, path, "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("preview: got %d, body: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != pythonResume {
		t.Errorf("preview body: got %q", w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "inline") || !strings.Contains(cd, "resume.txt") {
		t.Errorf("preview disposition: got %q", cd)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type: got %q", ct)
	}

	w = env.do(t, http.MethodGet, path+"?download=1", "alice", nil)
	if cd := w.Header().Get("Content-Disposition"); w.Code != http.StatusOK || !strings.HasPrefix(cd, "attachment") {
		t.Errorf("download: got %d, disposition %q", w.Code, cd)
	}

	if w := env.do(t, http.MethodGet, path, "bob", nil); w.Code != http.StatusNotFound {
		t.Errorf("other owner: got %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no owner: got %d, want 401", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/resumes/missing/file", "alice", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown resume: got %d, want 404", w.Code)
	}
}

func TestHandleWatchlist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := &models.Resume{OwnerID: "alice", Filename: "r.txt", Path: "/tmp/r.txt"}
	if err := env.store.CreateResume(ctx, res); err != nil {
		t.Fatal(err)
	}
	rule := &models.MonitoringRule{OwnerID: "alice", ResumeID: res.ID, Query: "developer"}
	if err := env.store.CreateRule(ctx, rule); err != nil {
		t.Fatal(err)
	}
	base := time.Now().UTC()
	var firstID string
	for i := 0; i < 12; i++ {
		m := &models.WatchlistMatch{
			RuleID:       rule.ID,
			Posting:      models.Posting{Title: fmt.Sprintf("Job %d", i), Company: "Acme", Location: "Remote"},
			Score:        50,
			DiscoveredAt: base.Add(time.Duration(i) * time.Second),
		}
		if _, err := env.store.InsertMatchIfNew(ctx, m); err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			firstID = m.ID
		}
	}

	w := env.do(t, http.MethodGet, "/api/v1/watchlist", "alice", nil)
	var page struct {
		Matches    []models.WatchlistMatch `json:"matches"`
		Total      int                     `json:"total"`
		TotalPages int                     `json:"total_pages"`
	}
	decode(t, w, &page)
	if page.Total != 12 || page.TotalPages != 2 || len(page.Matches) != 10 {
		t.Fatalf("unexpected watchlist page: total=%d pages=%d items=%d", page.Total, page.TotalPages, len(page.Matches))
	}
	if page.Matches[0].Title != "Job 11" {
		t.Errorf("newest first: got %q", page.Matches[0].Title)
	}

	w = env.do(t, http.MethodGet, "/api/v1/watchlist?page=2", "alice", nil)
	decode(t, w, &page)
	if len(page.Matches) != 2 {
		t.Errorf("page 2: got %d items, want 2", len(page.Matches))
	}
	if w := env.do(t, http.MethodGet, "/api/v1/watchlist?page=0", "alice", nil); w.Code != http.StatusBadRequest {
		t.Errorf("page 0: got %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/watchlist", "bob", nil)
	decode(t, w, &page)
	if page.Total != 0 || page.Matches == nil {
		t.Errorf("bob should have an empty watchlist, got %+v", page)
	}

	if w := env.do(t, http.MethodDelete, "/api/v1/watchlist/"+firstID, "bob", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete another owner's match: got %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/watchlist/"+firstID, "alice", nil); w.Code != http.StatusOK {
		t.Errorf("delete match: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	decode(t, w, &out)
	for _, key := range []string{"resumes", "rules", "matches", "monitor", "config"} {
		if _, ok := out[key]; !ok {
			t.Errorf("missing %q in status: %v", key, out)
		}
	}
	mon := out["monitor"].(map[string]interface{})
	if mon["running"] != true {
		t.Errorf("monitor running: got %v", mon["running"])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", models.ErrNotFound), http.StatusNotFound},
		{models.ErrDuplicateRule, http.StatusConflict},
		{models.ErrExtractionFailed, http.StatusUnprocessableEntity},
		{models.ErrSourceUnavailable, http.StatusBadGateway},
		{models.ErrStorage, http.StatusInternalServerError},
		{models.ErrEmptyQuery, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
