// Package chunker provides a structure-aware recursive text chunking processor.
package chunker

import (
	"context"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// Processor splits document content into overlapping chunks along
// markdown structure, falling back to finer separators only where a
// section does not fit. It implements the PostProcessor interface.
type Processor struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the maximum overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithSeparators replaces the separator hierarchy, coarsest first.
// Include "" last to allow character-level splitting.
func WithSeparators(separators []string) Option {
	return func(p *Processor) {
		p.separators = separators
	}
}

// New creates a new chunker processor with the given options.
// Returns ErrInvalidConfiguration unless size > 0 and 0 <= overlap < size.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: MarkdownSeparators,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := domain.ValidateChunking(p.chunkSize, p.overlap); err != nil {
		return nil, err
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
// Chunk ids are left empty for the id assignment step.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Content == "" {
		// Empty content produces no chunks
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spans := newSplitter(doc.Content, p.chunkSize, p.overlap, p.separators).spans()
	source := doc.Source()

	chunks := make([]domain.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, domain.Chunk{
			Source:   source,
			Content:  s.text,
			Index:    i,
			Offset:   s.start,
			Overlap:  s.overlap,
			Metadata: domain.NewChunkMetadata(doc.Metadata, i),
		})
	}

	return chunks, nil
}

// Split chunks every document with the default separators.
// An empty document list yields no chunks and no error.
func Split(docs []domain.Document, chunkSize, chunkOverlap int) ([]domain.Chunk, error) {
	p, err := New(WithChunkSize(chunkSize), WithOverlap(chunkOverlap))
	if err != nil {
		return nil, err
	}

	var out []domain.Chunk
	for i := range docs {
		chunks, err := p.Process(context.Background(), &docs[i], nil)
		if err != nil {
			return nil, err
		}
		out = append(out, chunks...)
	}
	return out, nil
}
