package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/resumatch/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultAdzunaURL is the Adzuna job search API root.
	DefaultAdzunaURL   = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize     = 50
	defaultHTTPTimeout = 15 * time.Second
)

// AdzunaConfig configures an AdzunaSource.
type AdzunaConfig struct {
	BaseURL  string
	AppID    string
	AppKey   string
	Country  string // "gb", "us", "fr", ...
	PageSize int
	Timeout  time.Duration
}

// AdzunaSource fetches postings from the Adzuna public API. With no credentials
// configured it returns no postings rather than failing.
type AdzunaSource struct {
	cfg    AdzunaConfig
	client *http.Client
	logger *zap.Logger
}

// NewAdzunaSource constructs a source with a shared HTTP client.
func NewAdzunaSource(cfg AdzunaConfig, logger *zap.Logger) *AdzunaSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAdzunaURL
	}
	if cfg.Country == "" {
		cfg.Country = "gb"
	}
	if cfg.PageSize <= 0 || cfg.PageSize > adzunaPageSize {
		cfg.PageSize = adzunaPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdzunaSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

type adzunaResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	RedirectURL string `json:"redirect_url"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

// Fetch retrieves up to pages pages for query, stopping early on a short page.
// A failure on the first page is returned as ErrSourceUnavailable; a failure on a
// later page is logged and the postings gathered so far are returned.
func (s *AdzunaSource) Fetch(ctx context.Context, query string, pages int) ([]models.Posting, error) {
	if s.cfg.AppID == "" || s.cfg.AppKey == "" {
		s.logger.Warn("adzuna credentials not set, skipping fetch", zap.String("query", query))
		return []models.Posting{}, nil
	}
	if pages <= 0 {
		pages = 1
	}

	out := make([]models.Posting, 0, pages*s.cfg.PageSize)
	for page := 1; page <= pages; page++ {
		batch, raw, err := s.fetchPage(ctx, query, page)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("%w: adzuna page 1: %v", models.ErrSourceUnavailable, err)
			}
			s.logger.Warn("adzuna page failed, returning partial results",
				zap.String("query", query), zap.Int("page", page), zap.Error(err))
			break
		}
		out = append(out, batch...)
		if raw < s.cfg.PageSize {
			break
		}
	}
	return out, nil
}

// fetchPage returns the usable postings of one page and the number of rows the
// API sent, untitled ones included.
func (s *AdzunaSource) fetchPage(ctx context.Context, query string, page int) ([]models.Posting, int, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.Country, page)

	params := url.Values{}
	params.Set("app_id", s.cfg.AppID)
	params.Set("app_key", s.cfg.AppKey)
	params.Set("results_per_page", strconv.Itoa(s.cfg.PageSize))
	params.Set("what", query)
	params.Set("content-type", "application/json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("adzuna returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	var apiResp adzunaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, 0, fmt.Errorf("json unmarshal: %w", err)
	}

	postings := make([]models.Posting, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		if strings.TrimSpace(r.Title) == "" {
			continue
		}
		loc := r.Location.DisplayName
		if loc == "" {
			loc = NotAvailable
		}
		postings = append(postings, models.Posting{
			Title:       strings.TrimSpace(r.Title),
			Company:     strings.TrimSpace(r.Company.DisplayName),
			Location:    loc,
			Description: strings.TrimSpace(r.Description),
			Link:        r.RedirectURL,
		})
	}
	return postings, len(apiResp.Results), nil
}

func truncateBody(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
