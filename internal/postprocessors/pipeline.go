// Package postprocessors provides document content processing implementations.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
)

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline chains multiple PostProcessors and runs them in order.
// It implements the PostProcessorPipeline interface.
type Pipeline struct {
	processors []driven.PostProcessor
	idStrategy domain.IDStrategy
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs the document through all processors in order.
// The first processor receives nil chunks and should create them.
// Subsequent processors receive and may modify the chunks.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	var chunks []domain.Chunk

	for _, processor := range p.processors {
		var err error
		chunks, err = processor.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	return chunks, nil
}

// Split runs every document through the pipeline and assigns chunk ids
// across the whole run. Chunks are returned in document order; the first
// processor error aborts the split.
func (p *Pipeline) Split(ctx context.Context, docs []domain.Document) ([]domain.Chunk, error) {
	var out []domain.Chunk
	for i := range docs {
		chunks, err := p.Process(ctx, &docs[i])
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", docs[i].Source(), err)
		}
		out = append(out, chunks...)
	}
	if err := AssignIDs(out, p.idStrategy); err != nil {
		return nil, err
	}
	return out, nil
}

// SetIDStrategy selects how Split derives chunk ids. The zero value
// derives them from source and sequence index.
func (p *Pipeline) SetIDStrategy(strategy domain.IDStrategy) {
	p.idStrategy = strategy
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}
