package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
	"github.com/custodia-labs/ragops/internal/core/ports/driving"
	"github.com/custodia-labs/ragops/internal/logger"
)

// Ensure IndexClient implements the interface.
var _ driving.IndexService = (*IndexClient)(nil)

// IndexClient is a stateless façade over a vector index backend. It
// enforces the same batch invariants whatever the backend, so a request
// rejected here never reaches the index.
type IndexClient struct {
	index      driven.VectorIndex
	embedder   driven.Embedder
	dimensions int
}

// NewIndexClient creates an index client. embedder may be nil when every
// record carries its own embedding. dimensions is the index
// dimensionality; zero skips the index check and only batch consistency
// is enforced.
func NewIndexClient(index driven.VectorIndex, embedder driven.Embedder, dimensions int) *IndexClient {
	return &IndexClient{
		index:      index,
		embedder:   embedder,
		dimensions: dimensions,
	}
}

// Upsert stores records, embedding those that have no vector yet.
func (c *IndexClient) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	if err := validateIDs(ids); err != nil {
		return err
	}

	batch := make([]domain.VectorRecord, len(records))
	copy(batch, records)

	var missing []int
	for i, r := range batch {
		if len(r.Embedding) == 0 {
			missing = append(missing, i)
		}
	}
	if err := c.embedMissing(ctx, batch, missing); err != nil {
		return err
	}

	if err := c.Validate(ctx, batch); err != nil {
		return err
	}

	logger.Debug("upserting %d records", len(batch))
	if err := c.index.Upsert(ctx, batch); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Validate checks that records share one dimensionality that matches the
// index. The index dimensionality is the configured one or, when that is
// zero, whatever the backend already holds.
func (c *IndexClient) Validate(ctx context.Context, records []domain.VectorRecord) error {
	dims, err := c.indexDimensions(ctx)
	if err != nil {
		return err
	}
	return checkDimensions(records, dims)
}

// Get returns records by ids, filter or page. With neither ids nor a
// filter the first DefaultGetLimit records are returned.
func (c *IndexClient) Get(ctx context.Context, req domain.GetRequest) ([]domain.VectorRecord, error) {
	if req.Limit < 0 || req.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrInvalidInput)
	}
	if len(req.IDs) == 0 && len(req.Filter) == 0 && req.Limit == 0 {
		req.Limit = domain.DefaultGetLimit
	}

	records, err := c.index.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	for i := range records {
		records[i] = req.Include.Apply(records[i])
	}
	return records, nil
}

// Query returns up to K nearest records in ascending distance. Ties keep
// the order the backend returned them in.
func (c *IndexClient) Query(ctx context.Context, req domain.QueryRequest) ([]domain.QueryMatch, error) {
	if req.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, req.K)
	}
	if len(req.Embedding) == 0 {
		return nil, fmt.Errorf("%w: query embedding is empty", domain.ErrInvalidInput)
	}
	dims, err := c.indexDimensions(ctx)
	if err != nil {
		return nil, err
	}
	if dims > 0 && len(req.Embedding) != dims {
		return nil, &domain.DimensionMismatchError{Expected: dims, Got: len(req.Embedding)}
	}

	matches, err := c.index.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	domain.SortMatches(matches)
	if len(matches) > req.K {
		matches = matches[:req.K]
	}
	return matches, nil
}

// Update applies patches positionally to ids. Unknown ids fail with
// ErrNotFound before anything is written.
func (c *IndexClient) Update(ctx context.Context, ids []string, patches []domain.RecordPatch) error {
	if len(ids) != len(patches) {
		return fmt.Errorf("%w: %d ids but %d patches", domain.ErrInvalidInput, len(ids), len(patches))
	}
	if len(ids) == 0 {
		return nil
	}
	if err := validateIDs(ids); err != nil {
		return err
	}

	existing, err := c.index.Get(ctx, domain.GetRequest{IDs: ids})
	if err != nil {
		return fmt.Errorf("update: fetch existing: %w", err)
	}
	byID := make(map[string]domain.VectorRecord, len(existing))
	for _, r := range existing {
		byID[r.ID] = r
	}

	var unknown []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, strings.Join(unknown, ", "))
	}

	merged := make([]domain.VectorRecord, len(ids))
	var reembed []int
	for i, id := range ids {
		r, p := byID[id], patches[i]
		if p.Document != nil {
			r.Document = *p.Document
		}
		if p.Metadata != nil {
			r.Metadata = p.Metadata
		}
		switch {
		case p.Embedding != nil:
			r.Embedding = p.Embedding
		case p.Document != nil:
			r.Embedding = nil
			reembed = append(reembed, i)
		}
		merged[i] = r
	}

	if err := c.embedMissing(ctx, merged, reembed); err != nil {
		return err
	}
	if err := c.Validate(ctx, merged); err != nil {
		return err
	}

	logger.Debug("updating %d records (%d re-embedded)", len(merged), len(reembed))
	if u, ok := c.index.(driven.Updater); ok {
		err = u.Update(ctx, merged)
	} else {
		err = c.index.Upsert(ctx, merged)
	}
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

// Delete removes records by ids and/or filter. A request naming neither
// deletes nothing.
func (c *IndexClient) Delete(ctx context.Context, req domain.DeleteRequest) (int, error) {
	if req.IsEmpty() {
		logger.Warn("delete called without ids or filter; nothing deleted")
		return 0, nil
	}

	n, err := c.index.Delete(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	logger.Debug("deleted %d records", n)
	return n, nil
}

// Peek returns up to n records; n <= 0 means DefaultGetLimit.
func (c *IndexClient) Peek(ctx context.Context, n int) ([]domain.VectorRecord, error) {
	if n <= 0 {
		n = domain.DefaultGetLimit
	}
	if p, ok := c.index.(driven.Peeker); ok {
		records, err := p.Peek(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("peek: %w", err)
		}
		return records, nil
	}
	return c.Get(ctx, domain.GetRequest{Limit: n})
}

// Count returns the number of stored records.
func (c *IndexClient) Count(ctx context.Context) (int, error) {
	counter, ok := c.index.(driven.Counter)
	if !ok {
		return 0, fmt.Errorf("%w: index backend cannot count records", domain.ErrUnsupportedOperation)
	}
	n, err := counter.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// embedMissing fills the embedding of records[i] for every i in idx from
// its document text.
func (c *IndexClient) embedMissing(ctx context.Context, records []domain.VectorRecord, idx []int) error {
	if len(idx) == 0 {
		return nil
	}
	if c.embedder == nil {
		return fmt.Errorf("%w: %d records have no embedding and no embedder is configured",
			domain.ErrInvalidConfiguration, len(idx))
	}

	texts := make([]string, len(idx))
	for j, i := range idx {
		texts[j] = records[i].Document
	}
	vectors, err := embedChecked(ctx, c.embedder, texts)
	if err != nil {
		return err
	}
	for j, i := range idx {
		records[i].Embedding = vectors[j]
	}
	return nil
}

func (c *IndexClient) indexDimensions(ctx context.Context) (int, error) {
	if c.dimensions > 0 {
		return c.dimensions, nil
	}
	r, ok := c.index.(driven.DimensionReporter)
	if !ok {
		return 0, nil
	}
	dims, err := r.Dimensions(ctx)
	if err != nil {
		return 0, fmt.Errorf("index dimensions: %w", err)
	}
	return dims, nil
}

// checkDimensions requires one dimensionality across records, equal to
// expected unless expected is zero.
func checkDimensions(records []domain.VectorRecord, expected int) error {
	for _, r := range records {
		if expected == 0 {
			expected = len(r.Embedding)
		}
		if len(r.Embedding) == 0 || len(r.Embedding) != expected {
			return &domain.DimensionMismatchError{Expected: expected, Got: len(r.Embedding), ID: r.ID}
		}
	}
	return nil
}

// embedChecked embeds texts and verifies the provider returned one
// vector per text.
func embedChecked(ctx context.Context, embedder driven.Embedder, texts []string) ([][]float32, error) {
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %s returned %d embeddings for %d texts",
			domain.ErrEmbeddingProvider, embedder.ModelName(), len(vectors), len(texts))
	}
	return vectors, nil
}

func validateIDs(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: record %d has an empty id", domain.ErrInvalidInput, i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
