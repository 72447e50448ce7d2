package driven

import (
	"context"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

// PostProcessor processes document content to produce chunks.
// PostProcessors are chained in a pipeline.
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a document and returns chunks.
	// If the processor modifies chunks, it receives and returns chunks.
	// If the processor creates chunks (e.g., chunker), it receives nil and returns new chunks.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs one document through all processors in order.
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)

	// Split runs every document through the pipeline and returns the
	// chunks in document order with their record ids assigned.
	Split(ctx context.Context, docs []domain.Document) ([]domain.Chunk, error)
}
