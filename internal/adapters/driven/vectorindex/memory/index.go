// Package memory provides an in-process vector index.
// Records live only as long as the process; it backs tests and dry runs.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
)

// Ensure Index implements the interfaces.
var (
	_ driven.VectorIndex       = (*Index)(nil)
	_ driven.Counter           = (*Index)(nil)
	_ driven.DimensionReporter = (*Index)(nil)
)

// Index is an in-memory implementation of driven.VectorIndex.
// Records are kept in insertion order; an overwrite keeps the
// original position. The first stored record fixes the
// dimensionality for the life of the index.
type Index struct {
	mu      sync.RWMutex
	metric  domain.DistanceMetric
	dims    int
	records map[string]domain.VectorRecord
	order   []string
}

// NewIndex creates an empty in-memory index ranking by metric.
// An invalid metric falls back to cosine.
func NewIndex(metric domain.DistanceMetric) *Index {
	if !metric.IsValid() {
		metric = domain.MetricCosine
	}
	return &Index{
		metric:  metric,
		records: make(map[string]domain.VectorRecord),
	}
}

// Upsert inserts or overwrites records by id. A batch with any record
// of the wrong dimensionality is rejected whole.
func (x *Index) Upsert(_ context.Context, records []domain.VectorRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	dims := x.dims
	for _, r := range records {
		if dims == 0 {
			dims = len(r.Embedding)
		}
		if len(r.Embedding) == 0 || len(r.Embedding) != dims {
			return &domain.DimensionMismatchError{Expected: dims, Got: len(r.Embedding), ID: r.ID}
		}
	}
	x.dims = dims

	for _, r := range records {
		if _, ok := x.records[r.ID]; !ok {
			x.order = append(x.order, r.ID)
		}
		x.records[r.ID] = clone(r)
	}
	return nil
}

// Get returns records by ids (request order), filter, or page.
func (x *Index) Get(_ context.Context, req domain.GetRequest) ([]domain.VectorRecord, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	ids := req.IDs
	if len(ids) == 0 {
		ids = x.order
	}

	var out []domain.VectorRecord
	for _, id := range ids {
		r, ok := x.records[id]
		if !ok || !req.Filter.Matches(r.Metadata) {
			continue
		}
		out = append(out, req.Include.Apply(clone(r)))
	}
	return page(out, req.Offset, req.Limit), nil
}

// Query ranks every record passing the filter and returns the nearest K.
func (x *Index) Query(_ context.Context, req domain.QueryRequest) ([]domain.QueryMatch, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.dims > 0 && len(req.Embedding) != x.dims {
		return nil, &domain.DimensionMismatchError{Expected: x.dims, Got: len(req.Embedding)}
	}

	var matches []domain.QueryMatch
	for _, id := range x.order {
		r := x.records[id]
		if !req.Filter.Matches(r.Metadata) {
			continue
		}
		r = req.Include.Apply(clone(r))
		matches = append(matches, domain.QueryMatch{
			ID:        r.ID,
			Document:  r.Document,
			Metadata:  r.Metadata,
			Distance:  x.metric.Distance(req.Embedding, x.records[id].Embedding),
			Embedding: r.Embedding,
		})
	}

	domain.SortMatches(matches)
	if req.K > 0 && len(matches) > req.K {
		matches = matches[:req.K]
	}
	return matches, nil
}

// Delete removes records selected by ids and filter together.
func (x *Index) Delete(_ context.Context, req domain.DeleteRequest) (int, error) {
	if req.IsEmpty() {
		return 0, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	ids := req.IDs
	if len(ids) == 0 {
		ids = slices.Clone(x.order)
	}

	removed := 0
	for _, id := range ids {
		r, ok := x.records[id]
		if !ok || !req.Filter.Matches(r.Metadata) {
			continue
		}
		delete(x.records, id)
		removed++
	}
	if removed > 0 {
		x.order = slices.DeleteFunc(x.order, func(id string) bool {
			_, ok := x.records[id]
			return !ok
		})
	}
	return removed, nil
}

// Count returns the number of stored records.
func (x *Index) Count(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records), nil
}

// Dimensions returns the dimensionality fixed by the first stored
// record, or 0 before anything was stored.
func (x *Index) Dimensions(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dims, nil
}

// Close is a no-op.
func (x *Index) Close() error {
	return nil
}

func clone(r domain.VectorRecord) domain.VectorRecord {
	r.Embedding = slices.Clone(r.Embedding)
	r.Metadata = maps.Clone(r.Metadata)
	return r
}

func page(records []domain.VectorRecord, offset, limit int) []domain.VectorRecord {
	if offset > 0 {
		if offset >= len(records) {
			return nil
		}
		records = records[offset:]
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}
