// Package openai provides an embedding service adapter using OpenAI API.
package openai

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
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions overrides the known dimension for the model. Only the
	// text-embedding-3 family can shorten its vectors on request.
	Dimensions int
}

// EmbeddingService generates embeddings using OpenAI API.
type EmbeddingService struct {
	api        *embedhttp.Client
	model      string
	dimensions int
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", domain.ErrInvalidConfiguration)
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
		api:        embedhttp.New("openai", strings.TrimSuffix(cfg.BaseURL, "/"), cfg.APIKey, cfg.Timeout),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// EmbedQuery embeds a search query; OpenAI encodes queries and
// documents alike.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedDocuments embeds texts in a single request.
func (s *EmbeddingService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := embeddingRequest{Model: s.model, Input: texts}
	if strings.HasPrefix(s.model, "text-embedding-3-") {
		req.Dimensions = s.dimensions
	}
	return s.api.Embeddings(ctx, req, len(texts))
}

// Dimensions returns the embedding vector size, or 0 for unknown models.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.Check(ctx, "/models")
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
