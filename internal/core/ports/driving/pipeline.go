package driving

import (
	"context"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

// IngestOptions tunes one ingestion run.
type IngestOptions struct {
	// ReplaceSources deletes every stored record of an ingested source
	// before writing its new chunks.
	ReplaceSources bool
}

// ChangeHandler receives the source of a changed document and the result
// of re-ingesting it. report is nil for deletions and failures.
type ChangeHandler func(source string, report *domain.IngestReport, err error)

// PipelineService runs ingestion and retrieval.
type PipelineService interface {
	// Ingest chunks, embeds and stores the documents. The first error
	// aborts the run.
	Ingest(ctx context.Context, docs []domain.Document, opts IngestOptions) (*domain.IngestReport, error)

	// IngestSource loads documents from a source location, then ingests them.
	IngestSource(ctx context.Context, loc domain.SourceLocation, opts IngestOptions) (*domain.IngestReport, error)

	// Watch ingests every change a watching source reports until ctx is
	// cancelled. onChange receives the outcome of each change.
	Watch(ctx context.Context, loc domain.SourceLocation, opts IngestOptions, onChange ChangeHandler) error

	// Retrieve embeds the query text (unless an embedding is given) and
	// returns the nearest records.
	Retrieve(ctx context.Context, req domain.RetrieveRequest) ([]domain.QueryMatch, error)
}
