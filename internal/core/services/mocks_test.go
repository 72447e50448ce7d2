package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
)

// mockEmbedder returns deterministic vectors of a fixed size. The first
// component is the text length so distinct texts get distinct vectors.
type mockEmbedder struct {
	mu      sync.Mutex
	dims    int
	err     error
	short   bool // return one vector fewer than requested
	calls   [][]string
	queries []string
	vectors map[string][]float32 // optional per-text override
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims}
}

func (m *mockEmbedder) vector(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	v := make([]float32, m.dims)
	v[0] = float32(len(text))
	if m.dims > 1 {
		v[1] = 1
	}
	return v
}

func (m *mockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, texts)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, m.vector(t))
	}
	if m.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, text)
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) ModelName() string { return "mock-embed" }
func (m *mockEmbedder) Ping(context.Context) error { return m.err }
func (m *mockEmbedder) Close() error { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// spyIndex wraps a backend and records the calls it receives.
type spyIndex struct {
	driven.VectorIndex
	upserts   [][]domain.VectorRecord
	deletes   []domain.DeleteRequest
	upsertErr error
	failAfter int // fail upserts after this many succeed; 0 disables
}

func (s *spyIndex) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if s.upsertErr != nil && (s.failAfter == 0 || len(s.upserts) >= s.failAfter) {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, records)
	return s.VectorIndex.Upsert(ctx, records)
}

func (s *spyIndex) Delete(ctx context.Context, req domain.DeleteRequest) (int, error) {
	s.deletes = append(s.deletes, req)
	return s.VectorIndex.Delete(ctx, req)
}

func (s *spyIndex) Count(ctx context.Context) (int, error) {
	return s.VectorIndex.(driven.Counter).Count(ctx)
}

func (s *spyIndex) Dimensions(ctx context.Context) (int, error) {
	if r, ok := s.VectorIndex.(driven.DimensionReporter); ok {
		return r.Dimensions(ctx)
	}
	return 0, nil
}

// updaterIndex adds a native update and peek to a backend.
type updaterIndex struct {
	driven.VectorIndex
	updated [][]domain.VectorRecord
	peeked  []int
}

func (u *updaterIndex) Update(ctx context.Context, records []domain.VectorRecord) error {
	u.updated = append(u.updated, records)
	return u.VectorIndex.Upsert(ctx, records)
}

func (u *updaterIndex) Peek(ctx context.Context, n int) ([]domain.VectorRecord, error) {
	u.peeked = append(u.peeked, n)
	return u.VectorIndex.Get(ctx, domain.GetRequest{Limit: n})
}

// bareIndex hides optional interfaces of the wrapped backend.
type bareIndex struct {
	inner driven.VectorIndex
}

func (b bareIndex) Upsert(ctx context.Context, r []domain.VectorRecord) error {
	return b.inner.Upsert(ctx, r)
}

func (b bareIndex) Get(ctx context.Context, req domain.GetRequest) ([]domain.VectorRecord, error) {
	return b.inner.Get(ctx, req)
}

func (b bareIndex) Query(ctx context.Context, req domain.QueryRequest) ([]domain.QueryMatch, error) {
	return b.inner.Query(ctx, req)
}

func (b bareIndex) Delete(ctx context.Context, req domain.DeleteRequest) (int, error) {
	return b.inner.Delete(ctx, req)
}

func (b bareIndex) Close() error { return b.inner.Close() }

// mockSource serves a fixed listing and an optional change stream.
type mockSource struct {
	scheme  string
	raws    []domain.RawDocument
	listErr error
	listed  []domain.SourceLocation
	changes chan domain.RawDocumentChange
}

func (m *mockSource) Scheme() string { return m.scheme }

func (m *mockSource) List(_ context.Context, loc domain.SourceLocation) ([]domain.RawDocument, error) {
	m.listed = append(m.listed, loc)
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.raws, nil
}

func (m *mockSource) Close() error { return nil }

// watchingSource is a mockSource that also implements driven.Watcher.
type watchingSource struct {
	*mockSource
}

func (w watchingSource) Watch(_ context.Context, _ domain.SourceLocation) (<-chan domain.RawDocumentChange, error) {
	if w.changes == nil {
		return nil, errors.New("no change stream")
	}
	return w.changes, nil
}

// mockSourceFactory returns registered sources by scheme.
type mockSourceFactory struct {
	sources map[string]driven.DocumentSource
}

func (f *mockSourceFactory) Source(_ context.Context, scheme string) (driven.DocumentSource, error) {
	src, ok := f.sources[scheme]
	if !ok {
		return nil, domain.ErrUnsupportedSource
	}
	return src, nil
}

// textNormaliser turns raw content into a document sourced at the URI.
// Names ending in .bin are rejected.
type textNormaliser struct{}

func (textNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if strings.HasSuffix(raw.URI, ".bin") {
		return nil, domain.ErrInvalidInput
	}
	return &domain.Document{
		ID:       raw.URI,
		Content:  string(raw.Content),
		Metadata: map[string]string{domain.MetaSource: raw.URI},
	}, nil
}
