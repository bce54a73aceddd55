package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/resumatch/internal/extract"
	"github.com/hyperjump/resumatch/internal/matcher"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/storage"
	"go.uber.org/zap"
)

const (
	maxUploadBytes    = 10 << 20
	defaultPageSize   = 10
	watchlistPageSize = 10
)

var (
	errNoResume    = errors.New("resume_text or resume_id is required")
	errInvalidPage = errors.New("page must be a positive integer")
)

type matchRequest struct {
	ResumeText string  `json:"resume_text"`
	ResumeID   string  `json:"resume_id"`
	Query      string  `json:"query"`
	Location   string  `json:"location"`
	MinScore   float64 `json:"min_score"`
	TopN       int     `json:"top_n"`
}

type ruleRequest struct {
	ResumeID string `json:"resume_id"`
	Query    string `json:"query"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	s.match(w, r, false)
}

func (s *Server) handleMatchAuto(w http.ResponseWriter, r *http.Request) {
	s.match(w, r, true)
}

func (s *Server) match(w http.ResponseWriter, r *http.Request, auto bool) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text, err := s.resumeText(r, req.ResumeText, req.ResumeID)
	if err != nil {
		s.fail(w, "resolve resume", err)
		return
	}
	rankReq := models.RankRequest{
		ResumeText: text,
		Query:      req.Query,
		Location:   req.Location,
		MinScore:   req.MinScore,
		TopN:       req.TopN,
	}
	s.logger.Debug("match request", zap.String("query", req.Query), zap.Bool("auto", auto), zap.String("location", req.Location))

	var rs *models.ResultSet
	if auto {
		rs, err = s.matcher.RankAuto(r.Context(), rankReq)
	} else {
		rs, err = s.matcher.RankForResume(r.Context(), rankReq)
	}
	if err != nil {
		s.fail(w, "match", err)
		return
	}
	s.respondJSON(w, http.StatusOK, rs.Page(1, s.pageSize()))
}

func (s *Server) handleDetectQuery(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text, err := s.resumeText(r, req.ResumeText, req.ResumeID)
	if err != nil {
		s.fail(w, "resolve resume", err)
		return
	}
	q, err := s.matcher.AutoDetectQuery(r.Context(), text)
	if err != nil {
		s.fail(w, "detect query", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"query": q})
}

func (s *Server) handleResultPage(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		s.fail(w, "result page", err)
		return
	}
	rs, err := s.matcher.Result(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "result page", err)
		return
	}
	s.respondJSON(w, http.StatusOK, rs.Page(page, s.pageSize()))
}

func (s *Server) handleResultJob(w http.ResponseWriter, r *http.Request) {
	rs, err := s.matcher.Result(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "result job", err)
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 || idx >= len(rs.Results) {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.respondJSON(w, http.StatusOK, rs.Results[idx])
}

func (s *Server) handleResultExport(w http.ResponseWriter, r *http.Request) {
	rs, err := s.matcher.Result(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "result export", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="resumatch-%s.csv"`, rs.ID))
	w.WriteHeader(http.StatusOK)
	if err := matcher.WriteCSV(w, rs.Results); err != nil {
		s.logger.Warn("csv export failed", zap.String("result_id", rs.ID), zap.Error(err))
	}
}

func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !extract.Supported(name) {
		s.respondError(w, http.StatusUnsupportedMediaType,
			"unsupported file type; want one of "+strings.Join(extract.SupportedExtensions, ", "))
		return
	}
	dst, err := storage.SaveUpload(s.uploadDir(), name, file)
	if err != nil {
		s.fail(w, "save upload", err)
		return
	}
	if _, err := s.extractor.Extract(dst); err != nil {
		_ = os.Remove(dst)
		s.fail(w, "extract upload", err)
		return
	}
	res := &models.Resume{OwnerID: ownerID(r), Filename: name, Path: dst}
	if err := s.storage.CreateResume(r.Context(), res); err != nil {
		_ = os.Remove(dst)
		s.fail(w, "create resume", err)
		return
	}
	s.logger.Info("resume uploaded", zap.String("id", res.ID), zap.String("owner", res.OwnerID), zap.String("filename", name))
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListResumes(w http.ResponseWriter, r *http.Request) {
	list, err := s.storage.ListResumes(r.Context(), ownerID(r))
	if err != nil {
		s.fail(w, "list resumes", err)
		return
	}
	if list == nil {
		list = []*models.Resume{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"resumes": list})
}

// handleResumeFile serves the stored resume inline, or as an attachment when
// download=1 is set.
func (s *Server) handleResumeFile(w http.ResponseWriter, r *http.Request) {
	res, err := s.ownedResume(r, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "resume file", err)
		return
	}
	f, err := os.Open(res.Path)
	if err != nil {
		if os.IsNotExist(err) {
			err = fmt.Errorf("resume file %s: %w", res.ID, models.ErrNotFound)
		}
		s.fail(w, "resume file", err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.fail(w, "resume file", err)
		return
	}

	disposition := "inline"
	if r.URL.Query().Get("download") == "1" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": res.Filename}))
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(res.Filename))); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, res.Filename, info.ModTime(), f)
}

func (s *Server) handleDeleteResume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.ownedResume(r, id)
	if err != nil {
		s.fail(w, "delete resume", err)
		return
	}
	if err := s.storage.DeleteResume(r.Context(), res.OwnerID, id); err != nil {
		s.fail(w, "delete resume", err)
		return
	}
	if err := os.Remove(res.Path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove resume file", zap.String("path", res.Path), zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.fail(w, "create rule", models.ErrEmptyQuery)
		return
	}
	if req.ResumeID == "" {
		s.respondError(w, http.StatusBadRequest, "resume_id is required")
		return
	}
	if _, err := s.ownedResume(r, req.ResumeID); err != nil {
		s.fail(w, "create rule", err)
		return
	}
	rule := &models.MonitoringRule{OwnerID: ownerID(r), ResumeID: req.ResumeID, Query: req.Query}
	if err := s.storage.CreateRule(r.Context(), rule); err != nil {
		s.fail(w, "create rule", err)
		return
	}
	s.logger.Info("monitoring rule created", zap.String("id", rule.ID), zap.String("query", rule.Query))
	s.respondJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.storage.ListRules(r.Context(), ownerID(r))
	if err != nil {
		s.fail(w, "list rules", err)
		return
	}
	if rules == nil {
		rules = []*models.MonitoringRule{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.storage.DeleteRule(r.Context(), ownerID(r), id); err != nil {
		s.fail(w, "delete rule", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleRuleMatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rule, err := s.storage.GetRule(r.Context(), id)
	if err != nil {
		s.fail(w, "rule matches", err)
		return
	}
	if rule.OwnerID != ownerID(r) {
		s.fail(w, "rule matches", fmt.Errorf("rule %s: %w", id, models.ErrNotFound))
		return
	}
	matches, err := s.storage.ListMatchesByRule(r.Context(), id)
	if err != nil {
		s.fail(w, "rule matches", err)
		return
	}
	if matches == nil {
		matches = []*models.WatchlistMatch{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"rule": rule, "matches": matches})
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		s.fail(w, "watchlist", err)
		return
	}
	owner := ownerID(r)
	total, err := s.storage.CountMatchesByOwner(r.Context(), owner)
	if err != nil {
		s.fail(w, "watchlist", err)
		return
	}
	matches, err := s.storage.ListMatchesByOwner(r.Context(), owner, (page-1)*watchlistPageSize, watchlistPageSize)
	if err != nil {
		s.fail(w, "watchlist", err)
		return
	}
	if matches == nil {
		matches = []*models.WatchlistMatch{}
	}
	totalPages := int((total + watchlistPageSize - 1) / watchlistPageSize)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"matches":     matches,
		"page":        page,
		"page_size":   watchlistPageSize,
		"total":       total,
		"total_pages": totalPages,
	})
}

func (s *Server) handleDeleteWatchlistMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteMatch(r.Context(), ownerID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "delete watchlist match", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.storage.Counts(r.Context())
	if err != nil {
		s.logger.Error("status: counts failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"resumes": counts.Resumes,
		"rules":   counts.Rules,
		"matches": counts.Matches,
	}
	if s.postings != nil {
		resp["posting_cache"] = s.postings.Stats()
	}
	if s.monitor != nil {
		resp["monitor"] = map[string]interface{}{
			"running":   s.monitor.Running(),
			"last_tick": s.monitor.LastReport(),
		}
	}
	if s.cfg != nil {
		resp["config"] = map[string]interface{}{
			"source_kind":      s.cfg.Source.Kind,
			"top_n":            s.cfg.Matching.TopN,
			"page_size":        s.cfg.Matching.PageSize,
			"monitor_interval": s.cfg.Monitor.Interval.String(),
			"database_path":    s.cfg.Storage.DatabasePath,
		}
		if diskBytes, err := storage.DiskUsageBytes(s.cfg.Storage.DatabasePath, s.cfg.Storage.UploadDir); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// resumeText returns inline text, or the extracted text of a stored resume the caller owns.
func (s *Server) resumeText(r *http.Request, text, resumeID string) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}
	if resumeID == "" {
		return "", errNoResume
	}
	res, err := s.ownedResume(r, resumeID)
	if err != nil {
		return "", err
	}
	return s.extractor.Extract(res.Path)
}

func (s *Server) ownedResume(r *http.Request, id string) (*models.Resume, error) {
	res, err := s.storage.GetResume(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if res.OwnerID != ownerID(r) {
		return nil, fmt.Errorf("resume %s: %w", id, models.ErrNotFound)
	}
	return res, nil
}

func (s *Server) pageSize() int {
	if s.cfg != nil && s.cfg.Matching.PageSize > 0 {
		return s.cfg.Matching.PageSize
	}
	return defaultPageSize
}

func (s *Server) uploadDir() string {
	if s.cfg != nil && s.cfg.Storage.UploadDir != "" {
		return s.cfg.Storage.UploadDir
	}
	return filepath.Join(os.TempDir(), "resumatch-uploads")
}

func pageParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidPage
	}
	return n, nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoResume), errors.Is(err, errInvalidPage),
		errors.Is(err, models.ErrEmptyQuery), errors.Is(err, models.ErrInvalidScore):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateRule):
		return http.StatusConflict
	case errors.Is(err, models.ErrExtractionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
