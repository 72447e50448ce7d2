package domain

import "fmt"

const unknownDescription = "Unknown"

// Chunking defaults.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// EmbeddingProvider identifies an embedding service.
type EmbeddingProvider string

// Available embedding providers.
const (
	// EmbeddingProviderVoyage is the Voyage AI cloud API.
	EmbeddingProviderVoyage EmbeddingProvider = "voyage"

	// EmbeddingProviderOpenAI is OpenAI cloud API.
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"

	// EmbeddingProviderOllama is local Ollama instance.
	EmbeddingProviderOllama EmbeddingProvider = "ollama"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderVoyage, EmbeddingProviderOpenAI, EmbeddingProviderOllama:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p EmbeddingProvider) RequiresAPIKey() bool {
	return p == EmbeddingProviderVoyage || p == EmbeddingProviderOpenAI
}

// String returns the string representation.
func (p EmbeddingProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p EmbeddingProvider) Description() string {
	switch p {
	case EmbeddingProviderVoyage:
		return "Voyage AI (cloud)"
	case EmbeddingProviderOpenAI:
		return "OpenAI (cloud)"
	case EmbeddingProviderOllama:
		return "Ollama (local)"
	default:
		return unknownDescription
	}
}

// IndexBackend identifies a vector index implementation.
type IndexBackend string

// Available index backends.
const (
	// IndexBackendWorker is the remote vector worker reached over HTTP.
	IndexBackendWorker IndexBackend = "worker"

	// IndexBackendSQLite is a local index file.
	IndexBackendSQLite IndexBackend = "sqlite"

	// IndexBackendMemory is an in-process index, lost on exit.
	IndexBackendMemory IndexBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b IndexBackend) IsValid() bool {
	switch b {
	case IndexBackendWorker, IndexBackendSQLite, IndexBackendMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b IndexBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b IndexBackend) Description() string {
	switch b {
	case IndexBackendWorker:
		return "Vector worker (remote HTTP)"
	case IndexBackendSQLite:
		return "SQLite (local file)"
	case IndexBackendMemory:
		return "In-memory (ephemeral)"
	default:
		return unknownDescription
	}
}

// IDStrategy selects how chunk record ids are derived.
type IDStrategy string

// Available id strategies.
const (
	// IDStrategySource derives ids from (source, sequence_index).
	// Re-ingesting a document overwrites its previous chunks.
	IDStrategySource IDStrategy = "source"

	// IDStrategyContent derives ids from source and chunk text.
	IDStrategyContent IDStrategy = "content"

	// IDStrategyPositional assigns doc_<i> by position in the run.
	IDStrategyPositional IDStrategy = "positional"
)

// IsValid returns true if the strategy is recognised.
func (s IDStrategy) IsValid() bool {
	switch s {
	case IDStrategySource, IDStrategyContent, IDStrategyPositional:
		return true
	default:
		return false
	}
}

// ChunkingSettings holds splitter configuration.
type ChunkingSettings struct {
	// Size is the maximum chunk length in characters.
	Size int

	// Overlap is the maximum number of characters repeated from the
	// previous chunk.
	Overlap int

	// IDStrategy selects how chunk ids are derived.
	IDStrategy IDStrategy
}

// Validate checks 0 <= overlap < size.
func (c ChunkingSettings) Validate() error {
	return ValidateChunking(c.Size, c.Overlap)
}

// ValidateChunking checks chunk size and overlap.
func ValidateChunking(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", ErrInvalidConfiguration, size, overlap)
	}
	return nil
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider EmbeddingProvider

	// Model is the embedding model name.
	Model string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// APIKey is the provider credential.
	APIKey string

	// BatchSize is the number of texts sent per embedding call.
	BatchSize int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// IndexSettings holds vector index configuration.
type IndexSettings struct {
	// Backend selects the index implementation.
	Backend IndexBackend

	// URL is the worker base URL.
	URL string

	// Token is the worker bearer token.
	Token string

	// Path is the sqlite database file.
	Path string

	// Dimensions is the index dimensionality. Zero means take it from
	// the embedder.
	Dimensions int

	// Metric is the distance metric for local backends.
	Metric DistanceMetric

	// BatchSize is the number of records sent per upsert call.
	BatchSize int
}

// SourceSettings holds the default document source.
type SourceSettings struct {
	// URI is gs://bucket/prefix, s3://bucket/prefix or a local path.
	URI string

	// Extensions filters object names by suffix.
	Extensions []string

	// ProjectID is the GCP project for GCS sources.
	ProjectID string

	// Region is the AWS region for S3 sources.
	Region string

	// Endpoint overrides the storage API endpoint (emulators, MinIO).
	Endpoint string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Chunking  ChunkingSettings
	Embedding EmbeddingSettings
	Index     IndexSettings
	Source    SourceSettings
}

// Validate checks settings needed by every pipeline run.
func (s AppSettings) Validate() error {
	if err := s.Chunking.Validate(); err != nil {
		return err
	}
	if !s.Chunking.IDStrategy.IsValid() {
		return fmt.Errorf("%w: unknown id strategy %q", ErrInvalidConfiguration, s.Chunking.IDStrategy)
	}
	if !s.Index.Backend.IsValid() {
		return fmt.Errorf("%w: unknown index backend %q", ErrInvalidConfiguration, s.Index.Backend)
	}
	if !s.Index.Metric.IsValid() {
		return fmt.Errorf("%w: unknown distance metric %q", ErrInvalidConfiguration, s.Index.Metric)
	}
	if s.Index.Backend == IndexBackendWorker && (s.Index.URL == "" || s.Index.Token == "") {
		return fmt.Errorf("%w: worker backend requires index.url and index.token", ErrInvalidConfiguration)
	}
	return nil
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunking: ChunkingSettings{
			Size:       DefaultChunkSize,
			Overlap:    DefaultChunkOverlap,
			IDStrategy: IDStrategySource,
		},
		Embedding: EmbeddingSettings{
			Provider:  EmbeddingProviderVoyage,
			Model:     DefaultEmbeddingModels()[EmbeddingProviderVoyage],
			BatchSize: 128,
		},
		Index: IndexSettings{
			Backend:   IndexBackendSQLite,
			Metric:    MetricCosine,
			BatchSize: 500,
		},
		Source: SourceSettings{
			Extensions: []string{".md"},
		},
	}
}

// AllEmbeddingProviders returns the supported embedding providers.
func AllEmbeddingProviders() []EmbeddingProvider {
	return []EmbeddingProvider{
		EmbeddingProviderVoyage,
		EmbeddingProviderOpenAI,
		EmbeddingProviderOllama,
	}
}

// AllIndexBackends returns the supported index backends.
func AllIndexBackends() []IndexBackend {
	return []IndexBackend{
		IndexBackendWorker,
		IndexBackendSQLite,
		IndexBackendMemory,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[EmbeddingProvider]string {
	return map[EmbeddingProvider]string{
		EmbeddingProviderVoyage: "voyage-law-2",
		EmbeddingProviderOpenAI: "text-embedding-3-small",
		EmbeddingProviderOllama: "nomic-embed-text",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Voyage models
		"voyage-law-2":  1024,
		"voyage-3":      1024,
		"voyage-3-lite": 512,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config so processors can be added without
// modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	ProcessorConfigs map[string]map[string]any

	// IDStrategy selects how chunk ids are derived after processing.
	IDStrategy IDStrategy
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfig returns the post-processor pipeline for these settings.
func (c ChunkingSettings) PipelineConfig() PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.Size,
				"overlap":    c.Overlap,
			},
		},
		IDStrategy: c.IDStrategy,
	}
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return DefaultAppSettings().Chunking.PipelineConfig()
}
