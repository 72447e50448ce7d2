// Package ai builds the embedding and vector index adapters from settings.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/ragops/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/ragops/internal/adapters/driven/embedding/openai"
	voyageembed "github.com/custodia-labs/ragops/internal/adapters/driven/embedding/voyage"
	memoryindex "github.com/custodia-labs/ragops/internal/adapters/driven/vectorindex/memory"
	sqliteindex "github.com/custodia-labs/ragops/internal/adapters/driven/vectorindex/sqlite"
	workerindex "github.com/custodia-labs/ragops/internal/adapters/driven/vectorindex/worker"
	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult holds the adapters a pipeline runs on.
type InitResult struct {
	Embedder driven.Embedder
	Index    driven.VectorIndex

	// Dimensions is the index dimensionality the client enforces.
	// Zero disables the check.
	Dimensions int
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() error {
	var errs []error
	if r.Embedder != nil {
		errs = append(errs, r.Embedder.Close())
	}
	if r.Index != nil {
		errs = append(errs, r.Index.Close())
	}
	return errors.Join(errs...)
}

// Init creates the embedder and the vector index for settings.
// indexOverride replaces the configured backend when non-empty.
func Init(settings *domain.AppSettings, indexOverride domain.IndexBackend) (*InitResult, error) {
	embedder, err := CreateEmbedder(&settings.Embedding)
	if err != nil {
		return nil, err
	}

	indexSettings := settings.Index
	if indexOverride != "" {
		indexSettings.Backend = indexOverride
	}
	index, err := CreateVectorIndex(&indexSettings)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	dims := indexSettings.Dimensions
	if dims == 0 {
		dims = embedder.Dimensions()
	}
	return &InitResult{Embedder: embedder, Index: index, Dimensions: dims}, nil
}

// CreateAndValidateEmbedder creates an embedder and validates connectivity.
func CreateAndValidateEmbedder(ctx context.Context, settings *domain.EmbeddingSettings) (driven.Embedder, error) {
	svc, err := CreateEmbedder(settings)
	if err != nil {
		return nil, fmt.Errorf("%w. Run 'ragops settings' to fix", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("service unreachable: %w. Run 'ragops settings' to fix", err)
	}
	return svc, nil
}

// ValidateEmbeddingConfig creates an embedder, pings it and closes it.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := CreateAndValidateEmbedder(ctx, settings)
	if err != nil {
		return err
	}
	return svc.Close()
}

// CreateEmbedder creates the embedding service selected by settings.
func CreateEmbedder(settings *domain.EmbeddingSettings) (driven.Embedder, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: embedding settings are missing", domain.ErrInvalidConfiguration)
	}
	if !settings.Provider.IsValid() {
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrInvalidConfiguration, settings.Provider)
	}

	dimensions := domain.EmbeddingDimensions()[settings.Model]

	switch settings.Provider {
	case domain.EmbeddingProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
		}), nil

	case domain.EmbeddingProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
		})

	default:
		return voyageembed.NewEmbeddingService(voyageembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
		})
	}
}

// CreateVectorIndex creates the index backend selected by settings.
func CreateVectorIndex(settings *domain.IndexSettings) (driven.VectorIndex, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: index settings are missing", domain.ErrInvalidConfiguration)
	}

	switch settings.Backend {
	case domain.IndexBackendWorker:
		return workerindex.NewClient(workerindex.Config{
			URL:   settings.URL,
			Token: settings.Token,
		})

	case domain.IndexBackendSQLite:
		return sqliteindex.NewIndex(settings.Path, settings.Metric)

	case domain.IndexBackendMemory:
		return memoryindex.NewIndex(settings.Metric), nil

	default:
		return nil, fmt.Errorf("%w: unsupported index backend %q", domain.ErrInvalidConfiguration, settings.Backend)
	}
}
