package driven

import "context"

// Embedder maps text to fixed-dimension vectors.
// Implementations call a provider such as Voyage, OpenAI or Ollama.
type Embedder interface {
	// EmbedDocuments returns one embedding per text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery returns the embedding of a search query.
	// Some providers encode queries differently from documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector size, or 0 when unknown until the
	// first call.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Ping checks that the provider is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
