package matcher

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/resumatch/internal/cache"
	"github.com/hyperjump/resumatch/internal/embedding"
	"github.com/hyperjump/resumatch/internal/keyword"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/ranking"
	"github.com/hyperjump/resumatch/internal/source"
	"github.com/hyperjump/resumatch/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	postings []models.Posting
	err      error
	calls    int32
	lastPage int
}

func (s *stubSource) Fetch(ctx context.Context, query string, pages int) ([]models.Posting, error) {
	atomic.AddInt32(&s.calls, 1)
	s.lastPage = pages
	return s.postings, s.err
}

var testPostings = []models.Posting{
	{Title: "Graphic Designer", Company: "Studio", Location: "Karachi", Description: "Photoshop Illustrator"},
	{Title: "Python Developer", Company: "Acme", Location: "Lahore", Description: "Django AWS backend"},
}

const pythonResume = "Senior Python Backend Engineer, 5 years Django, AWS"

func newService(src source.Source) *Service {
	x := keyword.NewExtractor(embedding.NewHashingEmbedder(embedding.DefaultDimensions))
	r := ranking.NewRanker(x, nil)
	return NewService(src, r, x, NewResultStore(0, 0), Config{}, nil)
}

func TestService_RankForResume(t *testing.T) {
	src := &stubSource{postings: testPostings}
	svc := newService(src)

	rs, err := svc.RankForResume(context.Background(), models.RankRequest{ResumeText: pythonResume, Query: "developer", TopN: 2})
	require.NoError(t, err)
	require.Len(t, rs.Results, 2)
	assert.Equal(t, "Python Developer", rs.Results[0].Title)
	assert.Greater(t, rs.Results[0].Score, rs.Results[1].Score)
	assert.Equal(t, 2, src.lastPage, "interactive path fetches two pages by default")

	stored, err := svc.Result(rs.ID)
	require.NoError(t, err)
	assert.Same(t, rs, stored)
}

func TestService_RankForResume_Filters(t *testing.T) {
	svc := newService(&stubSource{postings: testPostings})
	ctx := context.Background()

	rs, err := svc.RankForResume(ctx, models.RankRequest{ResumeText: pythonResume, Query: "jobs", Location: "LAHORE"})
	require.NoError(t, err)
	require.Len(t, rs.Results, 1)
	assert.Equal(t, "Lahore", rs.Results[0].Location)

	rs, err = svc.RankForResume(ctx, models.RankRequest{ResumeText: pythonResume, Query: "jobs", MinScore: 100})
	require.NoError(t, err)
	assert.Empty(t, rs.Results)
}

func TestService_RankForResume_Errors(t *testing.T) {
	svc := newService(&stubSource{err: models.ErrSourceUnavailable})
	_, err := svc.RankForResume(context.Background(), models.RankRequest{ResumeText: "x", Query: "go"})
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)

	_, err = svc.RankForResume(context.Background(), models.RankRequest{ResumeText: "x"})
	assert.ErrorIs(t, err, models.ErrEmptyQuery)
}

func TestService_RankForResume_EmptyPostings(t *testing.T) {
	svc := newService(&stubSource{})
	rs, err := svc.RankForResume(context.Background(), models.RankRequest{ResumeText: pythonResume, Query: "go"})
	require.NoError(t, err)
	assert.NotNil(t, rs.Results)
	assert.Empty(t, rs.Results)
}

func TestService_AutoDetectQuery(t *testing.T) {
	svc := newService(&stubSource{postings: testPostings})
	q, err := svc.AutoDetectQuery(context.Background(), "python python python django")
	require.NoError(t, err)
	assert.Equal(t, "python", q)

	q, err = svc.AutoDetectQuery(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, q)
}

func TestService_RankAuto(t *testing.T) {
	src := &stubSource{postings: testPostings}
	svc := newService(src)
	rs, err := svc.RankAuto(context.Background(), models.RankRequest{ResumeText: "python python python django developer"})
	require.NoError(t, err)
	assert.Equal(t, "python", rs.Query)
	assert.Equal(t, "Python Developer", rs.Results[0].Title)

	_, err = svc.RankAuto(context.Background(), models.RankRequest{ResumeText: "  "})
	assert.True(t, errors.Is(err, models.ErrEmptyQuery))
}

func TestService_SharedCacheAcrossCalls(t *testing.T) {
	inner := &stubSource{postings: testPostings}
	cached := source.NewCached(inner, cache.New[[]models.Posting](16, 30*time.Minute, cache.WithKeyNormalizer(utils.NormalizeKey)))
	svc := newService(cached)
	ctx := context.Background()
	for _, q := range []string{"Java Developer", "java developer"} {
		_, err := svc.RankForResume(ctx, models.RankRequest{ResumeText: pythonResume, Query: q})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, inner.calls)
}

func TestResultStore_Expiry(t *testing.T) {
	now := time.Unix(0, 0)
	store := NewResultStore(4, time.Minute, cache.WithClock(func() time.Time { return now }))
	store.Put(&models.ResultSet{ID: "a"})
	_, err := store.Get("a")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get("a")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []models.MatchResult{
		{Posting: models.Posting{Title: "Go Dev", Company: "Acme, Inc", Location: "Remote", Link: "https://x"}, Score: 87.456},
	})
	require.NoError(t, err)

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, csvHeader, recs[0])
	assert.Equal(t, []string{"Go Dev", "Acme, Inc", "Remote", "", "https://x", "87.46"}, recs[1])
}
