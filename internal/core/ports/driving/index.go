package driving

import (
	"context"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

// IndexService is the vector index client: CRUD and search with the same
// validation whatever the backend.
type IndexService interface {
	// Upsert stores records, overwriting existing ids.
	Upsert(ctx context.Context, records []domain.VectorRecord) error

	// Validate checks that embedded records share the index dimensionality
	// without writing anything.
	Validate(ctx context.Context, records []domain.VectorRecord) error

	// Get returns records by ids, filter or page.
	Get(ctx context.Context, req domain.GetRequest) ([]domain.VectorRecord, error)

	// Query returns up to K nearest records in ascending distance.
	Query(ctx context.Context, req domain.QueryRequest) ([]domain.QueryMatch, error)

	// Update applies patches positionally to ids.
	Update(ctx context.Context, ids []string, patches []domain.RecordPatch) error

	// Delete removes records and returns the affected count.
	Delete(ctx context.Context, req domain.DeleteRequest) (int, error)

	// Peek returns the first n records.
	Peek(ctx context.Context, n int) ([]domain.VectorRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}
