package services

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
	"github.com/custodia-labs/ragops/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize       = "chunking.size"
	keyChunkOverlap    = "chunking.overlap"
	keyChunkIDStrategy = "chunking.id_strategy"
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedBatchSize  = "embedding.batch_size"
	keyIndexBackend    = "index.backend"
	keyIndexURL        = "index.url"
	keyIndexToken      = "index.token"
	keyIndexPath       = "index.path"
	keyIndexDims       = "index.dimensions"
	keyIndexMetric     = "index.metric"
	keyIndexBatchSize  = "index.batch_size"
	keySourceURI       = "source.uri"
	keySourceExts      = "source.extensions"
	keySourceProject   = "source.project_id"
	keySourceRegion    = "source.region"
	keySourceEndpoint  = "source.endpoint"
)

// Environment variables that override stored settings when set.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvWorkerURL    = "CF_WORKER_URL"
	EnvWorkerToken  = "CF_API_KEY"
	EnvVoyageAPIKey = "VOYAGE_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvSourceBucket = "SOURCE_BUCKET_NAME"
	EnvSourcePrefix = "SOURCE_PREFIX"
	EnvGCPProject   = "GCP_PROJECT_ID"
	EnvAWSRegion    = "AWS_REGION"
)

var allKeys = []string{
	keyChunkSize, keyChunkOverlap, keyChunkIDStrategy,
	keyEmbedProvider, keyEmbedModel, keyEmbedBaseURL, keyEmbedAPIKey, keyEmbedBatchSize,
	keyIndexBackend, keyIndexURL, keyIndexToken, keyIndexPath, keyIndexDims, keyIndexMetric, keyIndexBatchSize,
	keySourceURI, keySourceExts, keySourceProject, keySourceRegion, keySourceEndpoint,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	getenv      func(string) string
}

// NewSettingsService creates a new settings service reading overrides
// from the process environment.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings: stored values, then
// environment overrides, with defaults for anything unset or invalid.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := s.stored()
	s.applyEnv(settings)
	return settings, nil
}

// stored returns the persisted settings without environment overrides.
func (s *SettingsService) stored() *domain.AppSettings {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Chunking: domain.ChunkingSettings{
			Size:       s.getInt(keyChunkSize, defaults.Chunking.Size),
			Overlap:    s.getOverlap(defaults.Chunking.Overlap),
			IDStrategy: s.getIDStrategy(defaults.Chunking.IDStrategy),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:  s.getEmbeddingProvider(defaults.Embedding.Provider),
			BaseURL:   s.configStore.GetString(keyEmbedBaseURL), // No default - empty means the provider's public endpoint
			APIKey:    s.configStore.GetString(keyEmbedAPIKey),
			BatchSize: s.getInt(keyEmbedBatchSize, defaults.Embedding.BatchSize),
		},
		Index: domain.IndexSettings{
			Backend:    s.getIndexBackend(defaults.Index.Backend),
			URL:        s.configStore.GetString(keyIndexURL),
			Token:      s.configStore.GetString(keyIndexToken),
			Path:       s.configStore.GetString(keyIndexPath),
			Dimensions: s.configStore.GetInt(keyIndexDims),
			Metric:     s.getMetric(defaults.Index.Metric),
			BatchSize:  s.getInt(keyIndexBatchSize, defaults.Index.BatchSize),
		},
		Source: domain.SourceSettings{
			URI:        s.configStore.GetString(keySourceURI),
			Extensions: defaults.Source.Extensions,
			ProjectID:  s.configStore.GetString(keySourceProject),
			Region:     s.configStore.GetString(keySourceRegion),
			Endpoint:   s.configStore.GetString(keySourceEndpoint),
		},
	}

	// Model defaults follow the provider, not the default provider.
	settings.Embedding.Model = s.getString(keyEmbedModel,
		domain.DefaultEmbeddingModels()[settings.Embedding.Provider])

	if _, ok := s.configStore.Get(keySourceExts); ok {
		settings.Source.Extensions = s.configStore.GetStringSlice(keySourceExts)
	}
	return settings
}

// applyEnv overrides settings with any set environment variable.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	if v := s.getenv(EnvWorkerURL); v != "" {
		settings.Index.URL = v
	}
	if v := s.getenv(EnvWorkerToken); v != "" {
		settings.Index.Token = v
	}

	switch settings.Embedding.Provider {
	case domain.EmbeddingProviderVoyage:
		if v := s.getenv(EnvVoyageAPIKey); v != "" {
			settings.Embedding.APIKey = v
		}
	case domain.EmbeddingProviderOpenAI:
		if v := s.getenv(EnvOpenAIAPIKey); v != "" {
			settings.Embedding.APIKey = v
		}
	}

	if bucket := s.getenv(EnvSourceBucket); bucket != "" {
		settings.Source.URI = domain.SchemeGCS + "://" + bucket + "/" + strings.TrimPrefix(s.getenv(EnvSourcePrefix), "/")
	}
	if v := s.getenv(EnvGCPProject); v != "" {
		settings.Source.ProjectID = v
	}
	if v := s.getenv(EnvAWSRegion); v != "" {
		settings.Source.Region = v
	}
}

// Save persists application settings. Empty secrets are not written so
// credentials supplied by the environment never reach the config file.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyChunkIDStrategy, string(settings.Chunking.IDStrategy)},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyIndexBackend, settings.Index.Backend.String()},
		{keyIndexURL, settings.Index.URL},
		{keyIndexPath, settings.Index.Path},
		{keyIndexDims, settings.Index.Dimensions},
		{keyIndexMetric, string(settings.Index.Metric)},
		{keyIndexBatchSize, settings.Index.BatchSize},
		{keySourceURI, settings.Source.URI},
		{keySourceExts, settings.Source.Extensions},
		{keySourceProject, settings.Source.ProjectID},
		{keySourceRegion, settings.Source.Region},
		{keySourceEndpoint, settings.Source.Endpoint},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.Index.Token != "" {
		if err := s.configStore.Set(keyIndexToken, settings.Index.Token); err != nil {
			return fmt.Errorf("save index token: %w", err)
		}
	}

	return nil
}

// Set validates and stores a single key.
func (s *SettingsService) Set(key, value string) error {
	var stored any = value

	switch key {
	case keyChunkSize, keyChunkOverlap, keyEmbedBatchSize, keyIndexDims, keyIndexBatchSize:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrInvalidInput, key, value)
		}
		if n < 0 || (n == 0 && key != keyChunkOverlap && key != keyIndexDims) {
			return fmt.Errorf("%w: %s must be positive, got %d", domain.ErrInvalidInput, key, n)
		}
		stored = n
	case keyChunkIDStrategy:
		if !domain.IDStrategy(value).IsValid() {
			return fmt.Errorf("%w: unknown id strategy %q", domain.ErrInvalidInput, value)
		}
	case keyEmbedProvider:
		if !domain.EmbeddingProvider(value).IsValid() {
			return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, value)
		}
	case keyIndexBackend:
		if !domain.IndexBackend(value).IsValid() {
			return fmt.Errorf("%w: unknown index backend %q", domain.ErrInvalidInput, value)
		}
	case keyIndexMetric:
		if !domain.DistanceMetric(value).IsValid() {
			return fmt.Errorf("%w: unknown distance metric %q", domain.ErrInvalidInput, value)
		}
	case keySourceURI:
		if value != "" {
			if _, err := domain.ParseSourceURI(value, nil); err != nil {
				return err
			}
		}
	case keySourceExts:
		stored = splitList(value)
	case keyEmbedModel, keyEmbedBaseURL, keyEmbedAPIKey, keyIndexURL, keyIndexToken, keyIndexPath,
		keySourceProject, keySourceRegion, keySourceEndpoint:
	default:
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	if key == keyChunkSize || key == keyChunkOverlap {
		current, err := s.Get()
		if err != nil {
			return err
		}
		size, overlap := current.Chunking.Size, current.Chunking.Overlap
		if key == keyChunkSize {
			size = stored.(int)
		} else {
			overlap = stored.(int)
		}
		if err := domain.ValidateChunking(size, overlap); err != nil {
			return err
		}
	}

	if err := s.configStore.Set(key, stored); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.EmbeddingProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, provider)
	}

	settings := s.stored()

	// Validate API key if required; the environment may already supply it
	if provider.RequiresAPIKey() && apiKey == "" && s.envAPIKey(provider) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidConfiguration, provider)
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	// Local providers need a base URL; cloud providers use their public endpoint
	if provider == domain.EmbeddingProviderOllama {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	// Update index dimensions based on model
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Index.Dimensions = d
	}

	return s.Save(settings)
}

// SetIndexBackend configures the vector index. target is the worker URL
// or the sqlite path; token is only used by the worker.
func (s *SettingsService) SetIndexBackend(backend domain.IndexBackend, target, token string) error {
	if !backend.IsValid() {
		return fmt.Errorf("%w: invalid index backend: %s", domain.ErrInvalidInput, backend)
	}

	settings := s.stored()
	settings.Index.Backend = backend
	switch backend {
	case domain.IndexBackendWorker:
		if target != "" {
			settings.Index.URL = target
		}
		if token != "" {
			settings.Index.Token = token
		}
		if (settings.Index.URL == "" && s.getenv(EnvWorkerURL) == "") ||
			(settings.Index.Token == "" && s.getenv(EnvWorkerToken) == "") {
			return fmt.Errorf("%w: worker backend requires a url and a token", domain.ErrInvalidConfiguration)
		}
	case domain.IndexBackendSQLite:
		settings.Index.Path = target
	}

	return s.Save(settings)
}

// Validate checks the current settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Keys returns every settable key in display order.
func (s *SettingsService) Keys() []string {
	out := make([]string, len(allKeys))
	copy(out, allKeys)
	return out
}

func (s *SettingsService) envAPIKey(provider domain.EmbeddingProvider) string {
	switch provider {
	case domain.EmbeddingProviderVoyage:
		return s.getenv(EnvVoyageAPIKey)
	case domain.EmbeddingProviderOpenAI:
		return s.getenv(EnvOpenAIAPIKey)
	default:
		return ""
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

// getOverlap distinguishes a stored 0 from an unset key.
func (s *SettingsService) getOverlap(defaultVal int) int {
	if _, exists := s.configStore.Get(keyChunkOverlap); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(keyChunkOverlap)
}

func (s *SettingsService) getIDStrategy(defaultVal domain.IDStrategy) domain.IDStrategy {
	strategy := domain.IDStrategy(s.configStore.GetString(keyChunkIDStrategy))
	if !strategy.IsValid() {
		return defaultVal
	}
	return strategy
}

func (s *SettingsService) getEmbeddingProvider(defaultVal domain.EmbeddingProvider) domain.EmbeddingProvider {
	provider := domain.EmbeddingProvider(s.configStore.GetString(keyEmbedProvider))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getIndexBackend(defaultVal domain.IndexBackend) domain.IndexBackend {
	backend := domain.IndexBackend(s.configStore.GetString(keyIndexBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getMetric(defaultVal domain.DistanceMetric) domain.DistanceMetric {
	metric := domain.DistanceMetric(s.configStore.GetString(keyIndexMetric))
	if !metric.IsValid() {
		return defaultVal
	}
	return metric
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
