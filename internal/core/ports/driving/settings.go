package driving

import "github.com/custodia-labs/ragops/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current settings: file values, then environment
	// overrides, then defaults.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// Set updates a single dot-notation key after validating it.
	Set(key, value string) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.EmbeddingProvider, model, apiKey string) error

	// SetIndexBackend configures the vector index backend.
	SetIndexBackend(backend domain.IndexBackend, target, token string) error

	// Validate checks the current settings.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// Keys returns every settable key.
	Keys() []string
}
