package mcp

import (
	"context"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driving"
)

// mockPipelineService is a mock implementation of driving.PipelineService.
type mockPipelineService struct {
	matches []domain.QueryMatch
	err     error
	lastReq domain.RetrieveRequest
}

func (m *mockPipelineService) Ingest(
	_ context.Context,
	_ []domain.Document,
	_ driving.IngestOptions,
) (*domain.IngestReport, error) {
	return nil, m.err
}

func (m *mockPipelineService) IngestSource(
	_ context.Context,
	_ domain.SourceLocation,
	_ driving.IngestOptions,
) (*domain.IngestReport, error) {
	return nil, m.err
}

func (m *mockPipelineService) Watch(
	_ context.Context,
	_ domain.SourceLocation,
	_ driving.IngestOptions,
	_ driving.ChangeHandler,
) error {
	return m.err
}

func (m *mockPipelineService) Retrieve(_ context.Context, req domain.RetrieveRequest) ([]domain.QueryMatch, error) {
	m.lastReq = req
	return m.matches, m.err
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	records  []domain.VectorRecord
	count    int
	err      error
	countErr error
	lastGet  domain.GetRequest
	lastPeek int
}

func (m *mockIndexService) Upsert(_ context.Context, _ []domain.VectorRecord) error {
	return m.err
}

func (m *mockIndexService) Validate(_ context.Context, _ []domain.VectorRecord) error {
	return nil
}

func (m *mockIndexService) Get(_ context.Context, req domain.GetRequest) ([]domain.VectorRecord, error) {
	m.lastGet = req
	return m.records, m.err
}

func (m *mockIndexService) Query(_ context.Context, _ domain.QueryRequest) ([]domain.QueryMatch, error) {
	return nil, m.err
}

func (m *mockIndexService) Update(_ context.Context, _ []string, _ []domain.RecordPatch) error {
	return m.err
}

func (m *mockIndexService) Delete(_ context.Context, _ domain.DeleteRequest) (int, error) {
	return 0, m.err
}

func (m *mockIndexService) Peek(_ context.Context, n int) ([]domain.VectorRecord, error) {
	m.lastPeek = n
	return m.records, m.err
}

func (m *mockIndexService) Count(_ context.Context) (int, error) {
	return m.count, m.countErr
}

func newTestServer(pipeline *mockPipelineService, index *mockIndexService) (*Server, error) {
	return NewServer(&Ports{Pipeline: pipeline, Index: index})
}
