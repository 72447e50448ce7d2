// Package voyage provides an embedding service adapter for the Voyage AI API.
package voyage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/ragops/internal/adapters/driven/embedding/embedhttp"
	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.Embedder = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.voyageai.com/v1"
	DefaultModel   = "voyage-law-2"
	DefaultTimeout = 60 * time.Second

	// MaxBatchSize is the most texts the API accepts per request.
	MaxBatchSize = 128
)

// Input types tell Voyage whether text is stored or searched for.
const (
	inputTypeDocument = "document"
	inputTypeQuery    = "query"
)

// Config holds configuration for the Voyage embedding service.
type Config struct {
	// APIKey is the Voyage API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.voyageai.com/v1).
	BaseURL string

	// Model is the embedding model (default: voyage-law-2).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions overrides the known dimension for the model.
	Dimensions int
}

// EmbeddingService generates embeddings using the Voyage API.
type EmbeddingService struct {
	api        *embedhttp.Client
	model      string
	dimensions int
}

type embeddingRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

// NewEmbeddingService creates a new Voyage embedding service.
// Returns ErrInvalidConfiguration when the API key is missing.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: VOYAGE_API_KEY is not set", domain.ErrInvalidConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = domain.EmbeddingDimensions()[cfg.Model]
	}

	return &EmbeddingService{
		api:        embedhttp.New("voyage", strings.TrimSuffix(cfg.BaseURL, "/"), cfg.APIKey, cfg.Timeout),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// EmbedDocuments embeds texts for storage, MaxBatchSize texts per request.
func (s *EmbeddingService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(texts))
		batch, err := s.embed(ctx, texts[start:end], inputTypeDocument)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// EmbedQuery embeds a search query.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.embed(ctx, []string{text}, inputTypeQuery)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (s *EmbeddingService) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	return s.api.Embeddings(ctx, embeddingRequest{
		Input:     texts,
		Model:     s.model,
		InputType: inputType,
	}, len(texts))
}

// Dimensions returns the embedding vector size, or 0 for unknown models.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping embeds a one-word query. Voyage has no free metadata endpoint.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.EmbedQuery(ctx, "ping")
	return err
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
