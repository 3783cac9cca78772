// Package audit runs rigor audits end to end: extraction, rule evaluation,
// optional narrative review, then persistence, archiving, indexing and
// caching. Only extraction and evaluation can fail an audit; every other
// collaborator failure is reported as a note on the result.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	extractor "github.com/turtacn/RigorAudit/internal/intelligence/feature_extractor"
	"github.com/turtacn/RigorAudit/internal/intelligence/narrative"
	"github.com/turtacn/RigorAudit/internal/intelligence/rigor_engine"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RigorAudit/internal/infrastructure/search/opensearch"
	"github.com/turtacn/RigorAudit/internal/infrastructure/storage/minio"
	"github.com/turtacn/RigorAudit/pkg/errors"
	types "github.com/turtacn/RigorAudit/pkg/types/audit"
)

const (
	// DefaultMaxTextBytes bounds the text of one audit.
	DefaultMaxTextBytes = 2 << 20

	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Note component prefixes.
const (
	componentCache    = "cache"
	componentStore    = "persistence"
	componentArchive  = "archive"
	componentIndex    = "index"
	componentEnhancer = "enhancer"
)

// Service is the audit application service.
type Service interface {
	Audit(ctx context.Context, req *Request) (*Result, error)
	Get(ctx context.Context, id string) (*Result, error)
	List(ctx context.Context, input *ListInput) (*ListResult, error)
	Search(ctx context.Context, input *SearchInput) (*opensearch.SearchResult, error)
	Dashboard(ctx context.Context, topN int) (*types.DashboardStats, error)
	Extract(text string) (types.FeatureMap, error)
}

// Repository persists audit records.
type Repository interface {
	Save(ctx context.Context, rec *types.Record) error
	GetByID(ctx context.Context, id string) (*types.Record, error)
	FindLatestByTextHash(ctx context.Context, hash string) (*types.Record, error)
	List(ctx context.Context, limit, offset int) ([]*types.Record, int64, error)
}

// ReportCache caches finished audits by content hash.
type ReportCache interface {
	Lookup(ctx context.Context, textHash string) (*types.Record, error)
	Store(ctx context.Context, rec *types.Record) error
}

// Archive keeps raw manuscripts and JSON reports.
type Archive interface {
	PutDocument(ctx context.Context, key string, data []byte, contentType string) (*minio.UploadResult, error)
	PutReport(ctx context.Context, rec *types.Record) error
	GetReport(ctx context.Context, auditID string) (*types.Record, error)
}

// Indexer makes summaries searchable.
type Indexer interface {
	IndexSummary(ctx context.Context, s types.Summary) error
}

// Searcher queries the summary index.
type Searcher interface {
	Search(ctx context.Context, q opensearch.SearchQuery) (*opensearch.SearchResult, error)
	Dashboard(ctx context.Context, topN int) (*types.DashboardStats, error)
}

// Narrator produces the optional language-model review.
type Narrator interface {
	Generate(ctx context.Context, in narrative.Input) narrative.Output
}

// Upload is a raw manuscript submitted with a request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Request is one audit submission.
type Request struct {
	Title   string
	Text    string
	Source  string
	Enhance bool
	// Document, when set, is archived next to the report.
	Document *Upload
}

// Result is a finished audit. Cached is true when it was served from the
// cache or an earlier identical audit.
type Result struct {
	types.Record
	Cached bool `json:"cached"`
}

// ListInput pages through stored audits.
type ListInput struct {
	Limit  int
	Offset int
}

// ListResult is one page of stored audits, newest first.
type ListResult struct {
	Items  []types.Summary `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// SearchInput filters the summary index.
type SearchInput = opensearch.SearchQuery

// Deps are the collaborators of the service. Extractor and Engine are
// required; everything else is optional.
type Deps struct {
	Extractor    *extractor.Extractor
	Engine       *rigor_engine.Engine
	Narrator     Narrator
	Repository   Repository
	Cache        ReportCache
	Archive      Archive
	Indexer      Indexer
	Searcher     Searcher
	Metrics      *prometheus.AuditMetrics
	Logger       logging.Logger
	MaxTextBytes int
}

type serviceImpl struct {
	deps   Deps
	logger logging.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates the audit service.
func NewService(deps Deps) (Service, error) {
	if deps.Extractor == nil || deps.Engine == nil {
		return nil, errors.New(errors.ErrCodeValidation, "audit service requires an extractor and an engine")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.MaxTextBytes <= 0 {
		deps.MaxTextBytes = DefaultMaxTextBytes
	}
	return &serviceImpl{
		deps:   deps,
		logger: deps.Logger.Named("audit"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}, nil
}

// ContentHash identifies an audit input. The title takes part because it
// drives the non-research classification.
func ContentHash(title, text string) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(title)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *serviceImpl) validate(req *Request) error {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return errors.New(errors.ErrCodeAuditEmptyText, "no text to audit")
	}
	if len(req.Text) > s.deps.MaxTextBytes {
		return errors.Newf(errors.ErrCodeAuditTooLarge, "text exceeds %d bytes", s.deps.MaxTextBytes)
	}
	return nil
}

func (s *serviceImpl) Audit(ctx context.Context, req *Request) (*Result, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	start := time.Now()
	hash := ContentHash(req.Title, req.Text)
	log := s.logger.With(logging.String("text_hash", hash[:12]))

	var notes []string
	note := func(component string, err error) {
		notes = append(notes, component+": "+err.Error())
		s.deps.Metrics.RecordCollaboratorFailure(component)
		log.Warn("Audit collaborator failed", logging.String("component", component), logging.Err(err))
	}

	if prev, err := s.lookup(ctx, hash); err != nil {
		note(componentCache, err)
	} else if prev != nil && (!req.Enhance || prev.Enhancement != nil) {
		s.deps.Metrics.RecordAudit(string(prev.Report.RigorRating), req.Source, prev.Report.OverallScore,
			len(prev.Report.CriticalGaps), true, time.Since(start))
		log.Debug("Audit served from cache", logging.String("audit_id", prev.ID))
		return &Result{Record: *prev, Cached: true}, nil
	}

	features := s.deps.Extractor.Extract(req.Text)
	report := s.deps.Engine.Evaluate(features, req.Title)

	rec := &types.Record{
		ID:        s.newID(),
		Title:     req.Title,
		Source:    req.Source,
		TextHash:  hash,
		Features:  features,
		Report:    report,
		CreatedAt: s.now(),
	}

	if req.Enhance {
		enh, msg := s.enhance(ctx, req, rec)
		rec.Enhancement = enh
		if msg != "" {
			notes = append(notes, componentEnhancer+": "+msg)
		}
	}

	if req.Document != nil && len(req.Document.Data) > 0 && s.deps.Archive != nil {
		key := minio.DocumentKey(rec.ID, req.Document.Filename)
		if _, err := s.deps.Archive.PutDocument(ctx, key, req.Document.Data, req.Document.ContentType); err != nil {
			note(componentArchive, err)
		}
	}

	// Notes gathered so far are part of the stored record.
	rec.Notes = notes
	if s.deps.Repository != nil {
		if err := s.deps.Repository.Save(ctx, rec); err != nil {
			note(componentStore, err)
		}
	}
	if s.deps.Archive != nil {
		if err := s.deps.Archive.PutReport(ctx, rec); err != nil {
			note(componentArchive, err)
		}
	}
	if s.deps.Indexer != nil {
		if err := s.deps.Indexer.IndexSummary(ctx, rec.Summarize()); err != nil {
			note(componentIndex, err)
		}
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Store(ctx, rec); err != nil {
			note(componentCache, err)
		}
	}
	rec.Notes = notes

	s.deps.Metrics.RecordAudit(string(report.RigorRating), req.Source, report.OverallScore,
		len(report.CriticalGaps), false, time.Since(start))
	log.Info("Audit completed",
		logging.String("audit_id", rec.ID),
		logging.Float64("score", report.OverallScore),
		logging.String("rating", string(report.RigorRating)),
		logging.Int("gaps", len(report.CriticalGaps)),
		logging.Int("notes", len(notes)),
		logging.Duration("elapsed", time.Since(start)))

	return &Result{Record: *rec}, nil
}

// enhance runs the narrator and returns its review or the reason it is
// missing.
func (s *serviceImpl) enhance(ctx context.Context, req *Request, rec *types.Record) (*types.Narrative, string) {
	if s.deps.Narrator == nil {
		return nil, narrative.NoteDisabled
	}
	start := time.Now()
	out := s.deps.Narrator.Generate(ctx, narrative.Input{
		Title:    req.Title,
		Text:     req.Text,
		Features: rec.Features,
		Report:   rec.Report,
	})
	if out.Note != narrative.NoteDisabled {
		s.deps.Metrics.RecordEnhancement(out.Enhancement != nil, time.Since(start))
	}
	if out.Enhancement == nil && out.Note != "" {
		s.deps.Metrics.RecordCollaboratorFailure(componentEnhancer)
	}
	return out.Enhancement, out.Note
}

// lookup finds an earlier audit of the same content, first in the cache and
// then in the repository. A miss returns nil, nil.
func (s *serviceImpl) lookup(ctx context.Context, hash string) (*types.Record, error) {
	if s.deps.Cache != nil {
		rec, err := s.deps.Cache.Lookup(ctx, hash)
		switch {
		case err == nil:
			s.deps.Metrics.RecordCacheAccess("report", true)
			return rec, nil
		case errors.IsNotFound(err):
			s.deps.Metrics.RecordCacheAccess("report", false)
		default:
			return nil, err
		}
	}
	if s.deps.Repository != nil {
		rec, err := s.deps.Repository.FindLatestByTextHash(ctx, hash)
		if err == nil {
			return rec, nil
		}
		if !errors.IsNotFound(err) {
			s.logger.Warn("Repository lookup failed", logging.Err(err))
		}
	}
	return nil, nil
}

func (s *serviceImpl) Get(ctx context.Context, id string) (*Result, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New(errors.ErrCodeValidation, "audit id is required")
	}
	if s.deps.Repository == nil && s.deps.Archive == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "no audit store configured")
	}

	if s.deps.Repository != nil {
		rec, err := s.deps.Repository.GetByID(ctx, id)
		if err == nil {
			return &Result{Record: *rec}, nil
		}
		if !errors.IsNotFound(err) || s.deps.Archive == nil {
			return nil, notFoundAs(err, id)
		}
	}

	rec, err := s.deps.Archive.GetReport(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, id)
	}
	return &Result{Record: *rec}, nil
}

func notFoundAs(err error, id string) error {
	if errors.IsNotFound(err) {
		return errors.New(errors.ErrCodeAuditNotFound, "audit not found").WithDetail(id)
	}
	return err
}

func (s *serviceImpl) List(ctx context.Context, input *ListInput) (*ListResult, error) {
	if s.deps.Repository == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "audit persistence is not configured")
	}
	in := ListInput{}
	if input != nil {
		in = *input
	}
	if in.Offset < 0 {
		return nil, errors.New(errors.ErrCodeValidation, "offset must be >= 0")
	}
	if in.Limit <= 0 {
		in.Limit = DefaultPageSize
	}
	if in.Limit > MaxPageSize {
		in.Limit = MaxPageSize
	}

	recs, total, err := s.deps.Repository.List(ctx, in.Limit, in.Offset)
	if err != nil {
		return nil, err
	}
	out := &ListResult{Items: make([]types.Summary, 0, len(recs)), Total: total, Limit: in.Limit, Offset: in.Offset}
	for _, r := range recs {
		out.Items = append(out.Items, r.Summarize())
	}
	return out, nil
}

func (s *serviceImpl) Search(ctx context.Context, input *SearchInput) (*opensearch.SearchResult, error) {
	if s.deps.Searcher == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "search index is not configured")
	}
	q := opensearch.SearchQuery{}
	if input != nil {
		q = *input
	}
	if q.MinScore != nil && q.MaxScore != nil && *q.MinScore > *q.MaxScore {
		return nil, errors.New(errors.ErrCodeValidation, "min_score exceeds max_score")
	}
	res, err := s.deps.Searcher.Search(ctx, q)
	if errors.IsNotFound(err) {
		return &opensearch.SearchResult{Items: []types.Summary{}}, nil
	}
	return res, err
}

// Dashboard aggregates the summary index. A missing index yields empty stats.
func (s *serviceImpl) Dashboard(ctx context.Context, topN int) (*types.DashboardStats, error) {
	if s.deps.Searcher == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "search index is not configured")
	}
	stats, err := s.deps.Searcher.Dashboard(ctx, topN)
	if errors.IsNotFound(err) {
		return &types.DashboardStats{
			Ratings:       []types.CountBucket{},
			TopGaps:       []types.CountBucket{},
			TopCategories: []types.CountBucket{},
		}, nil
	}
	return stats, err
}

// Extract runs only the feature extractor.
func (s *serviceImpl) Extract(text string) (types.FeatureMap, error) {
	if len(text) > s.deps.MaxTextBytes {
		return nil, errors.Newf(errors.ErrCodeAuditTooLarge, "text exceeds %d bytes", s.deps.MaxTextBytes)
	}
	return s.deps.Extractor.Extract(text), nil
}
