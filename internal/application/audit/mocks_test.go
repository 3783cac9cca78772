package audit

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/RigorAudit/internal/intelligence/narrative"
	"github.com/turtacn/RigorAudit/internal/infrastructure/search/opensearch"
	"github.com/turtacn/RigorAudit/internal/infrastructure/storage/minio"
	types "github.com/turtacn/RigorAudit/pkg/types/audit"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Save(ctx context.Context, rec *types.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*types.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Record), args.Error(1)
}

func (m *MockRepository) FindLatestByTextHash(ctx context.Context, hash string) (*types.Record, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Record), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, limit, offset int) ([]*types.Record, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*types.Record), args.Get(1).(int64), args.Error(2)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Lookup(ctx context.Context, hash string) (*types.Record, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Record), args.Error(1)
}

func (m *MockCache) Store(ctx context.Context, rec *types.Record) error {
	return m.Called(ctx, rec).Error(0)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) PutDocument(ctx context.Context, key string, data []byte, contentType string) (*minio.UploadResult, error) {
	args := m.Called(ctx, key, data, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*minio.UploadResult), args.Error(1)
}

func (m *MockArchive) PutReport(ctx context.Context, rec *types.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockArchive) GetReport(ctx context.Context, id string) (*types.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Record), args.Error(1)
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) IndexSummary(ctx context.Context, s types.Summary) error {
	return m.Called(ctx, s).Error(0)
}

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, q opensearch.SearchQuery) (*opensearch.SearchResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*opensearch.SearchResult), args.Error(1)
}

func (m *MockSearcher) Dashboard(ctx context.Context, topN int) (*types.DashboardStats, error) {
	args := m.Called(ctx, topN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.DashboardStats), args.Error(1)
}

// stubNarrator returns a fixed output.
type stubNarrator struct {
	out   narrative.Output
	calls int
}

func (s *stubNarrator) Generate(_ context.Context, in narrative.Input) narrative.Output {
	s.calls++
	out := s.out
	out.Report = in.Report
	return out
}
