package driven

import (
	"context"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

// VectorIndex is a vector store backend.
// Backends perform no validation beyond what their storage requires;
// callers go through the index client which enforces batch invariants.
type VectorIndex interface {
	// Upsert inserts records, overwriting any with an existing id.
	Upsert(ctx context.Context, records []domain.VectorRecord) error

	// Get returns records by ids, filter or page.
	Get(ctx context.Context, req domain.GetRequest) ([]domain.VectorRecord, error)

	// Query returns up to K nearest records, nearest first.
	Query(ctx context.Context, req domain.QueryRequest) ([]domain.QueryMatch, error)

	// Delete removes records by ids and/or filter and returns how many
	// the backend reported as removed.
	Delete(ctx context.Context, req domain.DeleteRequest) (int, error)

	// Close releases resources.
	Close() error
}

// Updater is implemented by backends with a dedicated update call.
// Others receive updates as an Upsert of the merged records.
type Updater interface {
	Update(ctx context.Context, records []domain.VectorRecord) error
}

// Peeker is implemented by backends with a native sampling call.
type Peeker interface {
	Peek(ctx context.Context, n int) ([]domain.VectorRecord, error)
}

// Counter is implemented by backends that can report their size.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// DimensionReporter is implemented by backends that fix their
// dimensionality from the first stored record. Dimensions is 0 while
// the index is empty.
type DimensionReporter interface {
	Dimensions(ctx context.Context) (int, error)
}
