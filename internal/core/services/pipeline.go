package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
	"github.com/custodia-labs/ragops/internal/core/ports/driving"
	"github.com/custodia-labs/ragops/internal/logger"
)

// Ensure PipelineService implements the interface.
var _ driving.PipelineService = (*PipelineService)(nil)

// PipelineOptions holds the batch sizes of a pipeline.
type PipelineOptions struct {
	// EmbedBatchSize is the number of chunks sent per embedding call.
	EmbedBatchSize int

	// UpsertBatchSize is the number of records sent per upsert call.
	UpsertBatchSize int
}

// PipelineService orchestrates ingestion (load, chunk, embed, store) and
// retrieval. It holds only immutable configuration and is safe to reuse
// across calls.
type PipelineService struct {
	pipeline    driven.PostProcessorPipeline
	embedder    driven.Embedder
	index       driving.IndexService
	sources     driven.SourceFactory
	normalisers driven.NormaliserRegistry
	opts        PipelineOptions
}

// NewPipelineService creates a pipeline service.
// sources and normalisers are only needed by IngestSource and Watch.
func NewPipelineService(
	pipeline driven.PostProcessorPipeline,
	embedder driven.Embedder,
	index driving.IndexService,
	sources driven.SourceFactory,
	normalisers driven.NormaliserRegistry,
	opts PipelineOptions,
) *PipelineService {
	defaults := domain.DefaultAppSettings()
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = defaults.Embedding.BatchSize
	}
	if opts.UpsertBatchSize <= 0 {
		opts.UpsertBatchSize = defaults.Index.BatchSize
	}
	return &PipelineService{
		pipeline:    pipeline,
		embedder:    embedder,
		index:       index,
		sources:     sources,
		normalisers: normalisers,
		opts:        opts,
	}
}

// Ingest chunks, embeds and stores documents. The first error aborts the
// run; records already upserted by earlier batches stay stored.
func (s *PipelineService) Ingest(
	ctx context.Context,
	docs []domain.Document,
	opts driving.IngestOptions,
) (*domain.IngestReport, error) {
	start := time.Now()
	report := &domain.IngestReport{}
	if len(docs) == 0 {
		return report, nil
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: ingestion requires an embedder", domain.ErrInvalidConfiguration)
	}

	for i, doc := range docs {
		if doc.Source() == "" {
			return nil, fmt.Errorf("%w: document %d has no %q metadata", domain.ErrInvalidInput, i, domain.MetaSource)
		}
		report.Sources = append(report.Sources, doc.Source())
	}
	report.Documents = len(docs)

	logger.Info("Chunking %d documents", len(docs))
	chunks, err := s.pipeline.Split(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	report.Chunks = len(chunks)
	if len(chunks) == 0 {
		report.Duration = time.Since(start)
		return report, nil
	}

	logger.Info("Embedding %d chunks with %s", len(chunks), s.embedder.ModelName())
	records := make([]domain.VectorRecord, len(chunks))
	for lo := 0; lo < len(chunks); lo += s.opts.EmbedBatchSize {
		hi := min(lo+s.opts.EmbedBatchSize, len(chunks))

		texts := make([]string, hi-lo)
		for i := lo; i < hi; i++ {
			texts[i-lo] = chunks[i].Content
		}
		vectors, err := embedChecked(ctx, s.embedder, texts)
		if err != nil {
			return nil, err
		}
		for i := lo; i < hi; i++ {
			records[i] = domain.VectorRecord{
				ID:        chunks[i].ID,
				Embedding: vectors[i-lo],
				Document:  chunks[i].Content,
				Metadata:  chunks[i].Metadata,
			}
		}
		logger.Debug("embedded chunks %d-%d", lo, hi-1)
	}

	// One dimensionality across the run that matches the index, checked
	// before any source is replaced or any batch stored.
	if err := s.index.Validate(ctx, records); err != nil {
		return nil, err
	}

	if opts.ReplaceSources {
		if err := s.replaceSources(ctx, report.Sources); err != nil {
			return nil, err
		}
	}

	logger.Info("Storing %d records", len(records))
	for lo := 0; lo < len(records); lo += s.opts.UpsertBatchSize {
		hi := min(lo+s.opts.UpsertBatchSize, len(records))
		if err := s.index.Upsert(ctx, records[lo:hi]); err != nil {
			return nil, fmt.Errorf("store records %d-%d: %w", lo, hi-1, err)
		}
		report.Stored += hi - lo
	}

	report.Duration = time.Since(start)
	return report, nil
}

// replaceSources deletes every stored record of each source once.
func (s *PipelineService) replaceSources(ctx context.Context, sources []string) error {
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if seen[src] {
			continue
		}
		seen[src] = true

		n, err := s.index.Delete(ctx, domain.DeleteRequest{Filter: domain.Filter{domain.MetaSource: src}})
		if err != nil {
			return fmt.Errorf("replace %s: %w", src, err)
		}
		if n > 0 {
			logger.Debug("removed %d stale records of %s", n, src)
		}
	}
	return nil
}

// IngestSource lists and decodes every matching object at loc, then
// ingests the documents.
func (s *PipelineService) IngestSource(
	ctx context.Context,
	loc domain.SourceLocation,
	opts driving.IngestOptions,
) (*domain.IngestReport, error) {
	docs, err := s.load(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		logger.Warn("no documents matched %s", loc.String())
	}
	return s.Ingest(ctx, docs, opts)
}

// load lists loc and normalises each object into a document.
func (s *PipelineService) load(ctx context.Context, loc domain.SourceLocation) ([]domain.Document, error) {
	src, err := s.source(ctx, loc)
	if err != nil {
		return nil, err
	}

	logger.Info("Loading documents from %s", loc.String())
	raws, err := src.List(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", loc.String(), err)
	}

	docs := make([]domain.Document, 0, len(raws))
	for i := range raws {
		doc, err := s.normalise(ctx, &raws[i])
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	logger.Debug("loaded %d documents", len(docs))
	return docs, nil
}

// Watch re-ingests each document a watching source reports as changed
// and deletes the records of removed ones. It returns when ctx is
// cancelled or the source stops.
func (s *PipelineService) Watch(
	ctx context.Context,
	loc domain.SourceLocation,
	opts driving.IngestOptions,
	onChange driving.ChangeHandler,
) error {
	src, err := s.source(ctx, loc)
	if err != nil {
		return err
	}

	watcher, ok := src.(driven.Watcher)
	if !ok {
		return fmt.Errorf("%w: %s sources cannot be watched", domain.ErrUnsupportedOperation, loc.Scheme)
	}

	changes, err := watcher.Watch(ctx, loc)
	if err != nil {
		return fmt.Errorf("watch %s: %w", loc.String(), err)
	}
	logger.Info("Watching %s", loc.String())

	// Changed documents always replace their previous chunks.
	opts.ReplaceSources = true

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			source, report, err := s.applyChange(ctx, change, opts)
			if onChange != nil {
				onChange(source, report, err)
			}
		}
	}
}

func (s *PipelineService) applyChange(
	ctx context.Context,
	change domain.RawDocumentChange,
	opts driving.IngestOptions,
) (string, *domain.IngestReport, error) {
	raw := change.Document
	if change.Type == domain.ChangeDeleted {
		_, err := s.index.Delete(ctx, domain.DeleteRequest{Filter: domain.Filter{domain.MetaSource: raw.URI}})
		return raw.URI, nil, err
	}

	doc, err := s.normalise(ctx, &raw)
	if err != nil {
		return raw.URI, nil, err
	}
	report, err := s.Ingest(ctx, []domain.Document{*doc}, opts)
	return raw.URI, report, err
}

// Retrieve embeds the query text unless an embedding is given and
// returns the nearest records.
func (s *PipelineService) Retrieve(ctx context.Context, req domain.RetrieveRequest) ([]domain.QueryMatch, error) {
	embedding := req.Embedding
	if len(embedding) == 0 {
		if req.Text == "" {
			return nil, fmt.Errorf("%w: retrieve needs query text or an embedding", domain.ErrInvalidInput)
		}
		if s.embedder == nil {
			return nil, fmt.Errorf("%w: text retrieval requires an embedder", domain.ErrInvalidConfiguration)
		}

		var err error
		embedding, err = s.embedder.EmbedQuery(ctx, req.Text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}

	return s.index.Query(ctx, domain.QueryRequest{
		Embedding: embedding,
		K:         req.K,
		Filter:    req.Filter,
	})
}

func (s *PipelineService) source(ctx context.Context, loc domain.SourceLocation) (driven.DocumentSource, error) {
	if s.sources == nil {
		return nil, errors.New("source factory not configured")
	}
	src, err := s.sources.Source(ctx, loc.Scheme)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", loc.Scheme, err)
	}
	return src, nil
}

func (s *PipelineService) normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if s.normalisers == nil {
		return nil, errors.New("normaliser registry not configured")
	}
	doc, err := s.normalisers.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("normalise %s: %w", raw.URI, err)
	}
	return doc, nil
}
