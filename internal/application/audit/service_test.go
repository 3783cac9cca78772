package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	extractor "github.com/turtacn/RigorAudit/internal/intelligence/feature_extractor"
	"github.com/turtacn/RigorAudit/internal/intelligence/narrative"
	"github.com/turtacn/RigorAudit/internal/intelligence/rigor_engine"
	"github.com/turtacn/RigorAudit/internal/infrastructure/search/opensearch"
	"github.com/turtacn/RigorAudit/internal/infrastructure/storage/minio"
	"github.com/turtacn/RigorAudit/pkg/errors"
	types "github.com/turtacn/RigorAudit/pkg/types/audit"
)

const trialText = `Participants were randomly assigned to treatment or placebo in a
double-blind design. Data were analysed with SPSS version 26. Normality was
checked with the Shapiro-Wilk test. Results are reported as mean ± SD with
95% confidence intervals; p < 0.05 was considered significant.`

const trialTitle = "A randomised trial of exercise in older adults"

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var cacheMiss = errors.New(errors.ErrCodeNotFound, "cache miss")

func newTestService(t *testing.T, deps Deps) *serviceImpl {
	t.Helper()
	deps.Extractor = extractor.NewExtractor(nil)
	deps.Engine = rigor_engine.NewEngine()
	svc, err := NewService(deps)
	require.NoError(t, err)
	impl := svc.(*serviceImpl)
	impl.now = func() time.Time { return fixedNow }
	impl.newID = func() string { return "audit-1" }
	return impl
}

func TestNewService_RequiresCore(t *testing.T) {
	_, err := NewService(Deps{})
	assert.True(t, errors.IsValidation(err))
}

func TestAudit_EmptyText(t *testing.T) {
	svc := newTestService(t, Deps{})

	for _, req := range []*Request{nil, {Title: "x"}, {Text: " \n\t "}} {
		_, err := svc.Audit(context.Background(), req)
		assert.True(t, errors.IsCode(err, errors.ErrCodeAuditEmptyText))
		assert.True(t, errors.IsValidation(err))
	}
}

func TestAudit_TooLarge(t *testing.T) {
	svc := newTestService(t, Deps{MaxTextBytes: 16})

	_, err := svc.Audit(context.Background(), &Request{Text: strings.Repeat("a", 17)})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuditTooLarge))
}

func TestAudit_NoCollaborators(t *testing.T) {
	svc := newTestService(t, Deps{})

	res, err := svc.Audit(context.Background(), &Request{Title: trialTitle, Text: trialText})
	require.NoError(t, err)

	want := rigor_engine.NewEngine().Evaluate(extractor.NewExtractor(nil).Extract(trialText), trialTitle)
	assert.Equal(t, want, res.Report)
	assert.Equal(t, "audit-1", res.ID)
	assert.Equal(t, ContentHash(trialTitle, trialText), res.TextHash)
	assert.Equal(t, fixedNow, res.CreatedAt)
	assert.True(t, res.Features.Has("randomization"))
	assert.Empty(t, res.Notes)
	assert.False(t, res.Cached)
}

func TestAudit_FullPipeline(t *testing.T) {
	ctx := context.Background()
	hash := ContentHash(trialTitle, trialText)

	cache := new(MockCache)
	repo := new(MockRepository)
	archive := new(MockArchive)
	indexer := new(MockIndexer)

	cache.On("Lookup", ctx, hash).Return(nil, cacheMiss)
	repo.On("FindLatestByTextHash", ctx, hash).Return(nil, errors.New(errors.ErrCodeAuditNotFound, "audit not found"))
	archive.On("PutDocument", ctx, "documents/audit-1/paper.pdf", []byte("%PDF"), "application/pdf").
		Return(&minio.UploadResult{ObjectKey: "documents/audit-1/paper.pdf"}, nil)
	repo.On("Save", ctx, mock.AnythingOfType("*audit.Record")).Return(nil)
	archive.On("PutReport", ctx, mock.AnythingOfType("*audit.Record")).Return(nil)
	indexer.On("IndexSummary", ctx, mock.MatchedBy(func(s types.Summary) bool {
		return s.ID == "audit-1" && s.Title == trialTitle && s.Source == "upload"
	})).Return(nil)
	cache.On("Store", ctx, mock.AnythingOfType("*audit.Record")).Return(nil)

	svc := newTestService(t, Deps{Cache: cache, Repository: repo, Archive: archive, Indexer: indexer})
	res, err := svc.Audit(ctx, &Request{
		Title:    trialTitle,
		Text:     trialText,
		Source:   "upload",
		Document: &Upload{Filename: "../paper.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Notes)

	cache.AssertExpectations(t)
	repo.AssertExpectations(t)
	archive.AssertExpectations(t)
	indexer.AssertExpectations(t)
}

func TestAudit_CollaboratorFailuresBecomeNotes(t *testing.T) {
	ctx := context.Background()

	cache := new(MockCache)
	repo := new(MockRepository)
	indexer := new(MockIndexer)

	cache.On("Lookup", ctx, mock.Anything).Return(nil, errors.New(errors.ErrCodeCacheError, "redis down"))
	repo.On("FindLatestByTextHash", ctx, mock.Anything).Return(nil, errors.New(errors.ErrCodeDatabaseError, "db down"))
	repo.On("Save", ctx, mock.Anything).Return(errors.New(errors.ErrCodeDatabaseError, "db down"))
	indexer.On("IndexSummary", ctx, mock.Anything).Return(errors.New(errors.ErrCodeSearchIndex, "index down"))
	cache.On("Store", ctx, mock.Anything).Return(errors.New(errors.ErrCodeCacheError, "redis down"))

	svc := newTestService(t, Deps{Cache: cache, Repository: repo, Indexer: indexer})
	res, err := svc.Audit(ctx, &Request{Title: trialTitle, Text: trialText})
	require.NoError(t, err)

	require.Len(t, res.Notes, 4)
	assert.True(t, strings.HasPrefix(res.Notes[0], "cache: "))
	assert.True(t, strings.HasPrefix(res.Notes[1], "persistence: "))
	assert.True(t, strings.HasPrefix(res.Notes[2], "index: "))
	assert.True(t, strings.HasPrefix(res.Notes[3], "cache: "))
	assert.True(t, res.Report.Deterministic)
}

func TestAudit_CacheHit(t *testing.T) {
	ctx := context.Background()
	prev := &types.Record{ID: "earlier", TextHash: "h", Report: types.FeedbackReport{OverallScore: 8.5, RigorRating: types.RatingHigh}}

	cache := new(MockCache)
	cache.On("Lookup", ctx, mock.Anything).Return(prev, nil)
	repo := new(MockRepository) // any call fails the test

	svc := newTestService(t, Deps{Cache: cache, Repository: repo})
	res, err := svc.Audit(ctx, &Request{Title: trialTitle, Text: trialText})
	require.NoError(t, err)

	assert.True(t, res.Cached)
	assert.Equal(t, "earlier", res.ID)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAudit_RepositoryHit(t *testing.T) {
	ctx := context.Background()
	prev := &types.Record{ID: "stored"}

	repo := new(MockRepository)
	repo.On("FindLatestByTextHash", ctx, mock.Anything).Return(prev, nil)

	svc := newTestService(t, Deps{Repository: repo})
	res, err := svc.Audit(ctx, &Request{Title: trialTitle, Text: trialText})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, "stored", res.ID)
}

func TestAudit_CachedWithoutEnhancementIsRecomputed(t *testing.T) {
	ctx := context.Background()
	cache := new(MockCache)
	cache.On("Lookup", ctx, mock.Anything).Return(&types.Record{ID: "plain"}, nil)
	cache.On("Store", ctx, mock.Anything).Return(nil)

	n := &stubNarrator{out: narrative.Output{Enhancement: &types.Narrative{Summary: "ok"}}}
	svc := newTestService(t, Deps{Cache: cache, Narrator: n})

	res, err := svc.Audit(ctx, &Request{Title: trialTitle, Text: trialText, Enhance: true})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "audit-1", res.ID)
	require.NotNil(t, res.Enhancement)
	assert.Equal(t, "ok", res.Enhancement.Summary)
	assert.Equal(t, 1, n.calls)
}

func TestAudit_EnhanceWithoutNarrator(t *testing.T) {
	svc := newTestService(t, Deps{})

	res, err := svc.Audit(context.Background(), &Request{Title: trialTitle, Text: trialText, Enhance: true})
	require.NoError(t, err)
	assert.Nil(t, res.Enhancement)
	assert.Equal(t, []string{"enhancer: " + narrative.NoteDisabled}, res.Notes)
}

func TestAudit_EnhancerFailureKeepsReport(t *testing.T) {
	n := &stubNarrator{out: narrative.Output{Note: "LLM Error: timeout"}}
	svc := newTestService(t, Deps{Narrator: n})

	res, err := svc.Audit(context.Background(), &Request{Title: trialTitle, Text: trialText, Enhance: true})
	require.NoError(t, err)
	assert.Nil(t, res.Enhancement)
	assert.Equal(t, []string{"enhancer: LLM Error: timeout"}, res.Notes)
	assert.True(t, res.Report.Deterministic)
}

func TestContentHash_TitleMatters(t *testing.T) {
	assert.Equal(t, ContentHash("a", "text"), ContentHash(" a ", "text"))
	assert.NotEqual(t, ContentHash("a", "text"), ContentHash("b", "text"))
	assert.Len(t, ContentHash("", ""), 64)
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	notFound := errors.New(errors.ErrCodeAuditNotFound, "audit not found")

	t.Run("repository", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", ctx, "a1").Return(&types.Record{ID: "a1"}, nil)
		res, err := newTestService(t, Deps{Repository: repo}).Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "a1", res.ID)
	})

	t.Run("archive fallback", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", ctx, "a1").Return(nil, notFound)
		archive := new(MockArchive)
		archive.On("GetReport", ctx, "a1").Return(&types.Record{ID: "a1"}, nil)
		res, err := newTestService(t, Deps{Repository: repo, Archive: archive}).Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "a1", res.ID)
	})

	t.Run("missing everywhere", func(t *testing.T) {
		archive := new(MockArchive)
		archive.On("GetReport", ctx, "a1").Return(nil, errors.New(errors.ErrCodeObjectNotFound, "object not found"))
		_, err := newTestService(t, Deps{Archive: archive}).Get(ctx, "a1")
		assert.True(t, errors.IsCode(err, errors.ErrCodeAuditNotFound))
	})

	t.Run("database error is not masked", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", ctx, "a1").Return(nil, errors.New(errors.ErrCodeDatabaseError, "boom"))
		_, err := newTestService(t, Deps{Repository: repo}).Get(ctx, "a1")
		assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
	})

	t.Run("no store", func(t *testing.T) {
		_, err := newTestService(t, Deps{}).Get(ctx, "a1")
		assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := newTestService(t, Deps{}).Get(ctx, " ")
		assert.True(t, errors.IsValidation(err))
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	recs := []*types.Record{
		{ID: "b", Report: types.FeedbackReport{OverallScore: 5.5, RigorRating: types.RatingMedium,
			CriticalGaps: []types.Finding{{Message: "g1"}, {Message: "g2"}}}},
		{ID: "a", Report: types.FeedbackReport{OverallScore: 10, RigorRating: types.RatingHigh}},
	}
	repo.On("List", ctx, DefaultPageSize, 0).Return(recs, int64(2), nil)
	repo.On("List", ctx, MaxPageSize, 10).Return([]*types.Record{}, int64(2), nil)

	svc := newTestService(t, Deps{Repository: repo})

	res, err := svc.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 2, res.Items[0].GapCount)
	assert.Equal(t, []string{"g1", "g2"}, res.Items[0].Gaps)

	res, err = svc.List(ctx, &ListInput{Limit: 5000, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, MaxPageSize, res.Limit)

	_, err = svc.List(ctx, &ListInput{Offset: -1})
	assert.True(t, errors.IsValidation(err))

	_, err = newTestService(t, Deps{}).List(ctx, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()

	searcher := new(MockSearcher)
	searcher.On("Dashboard", ctx, 5).Return(&types.DashboardStats{TotalAudits: 3}, nil)
	stats, err := newTestService(t, Deps{Searcher: searcher}).Dashboard(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalAudits)

	missing := new(MockSearcher)
	missing.On("Dashboard", ctx, 0).Return(nil, errors.New(errors.ErrCodeNotFound, "no such index"))
	stats, err = newTestService(t, Deps{Searcher: missing}).Dashboard(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAudits)
	assert.NotNil(t, stats.TopGaps)

	_, err = newTestService(t, Deps{}).Dashboard(ctx, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	searcher := new(MockSearcher)
	q := opensearch.SearchQuery{Rating: types.RatingLow}
	searcher.On("Search", ctx, q).Return(&opensearch.SearchResult{Total: 1, Items: []types.Summary{{ID: "x"}}}, nil)

	svc := newTestService(t, Deps{Searcher: searcher})
	res, err := svc.Search(ctx, &q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)

	lo, hi := 8.0, 2.0
	_, err = svc.Search(ctx, &SearchInput{MinScore: &lo, MaxScore: &hi})
	assert.True(t, errors.IsValidation(err))
}

func TestExtract(t *testing.T) {
	svc := newTestService(t, Deps{MaxTextBytes: 1024})

	fm, err := svc.Extract(trialText)
	require.NoError(t, err)
	assert.True(t, fm.Has("software"))

	fm, err = svc.Extract("")
	require.NoError(t, err)
	assert.Empty(t, fm.PresentCategories())

	_, err = svc.Extract(strings.Repeat("x", 2048))
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuditTooLarge))
}
