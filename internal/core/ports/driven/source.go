package driven

import (
	"context"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

// DocumentSource lists and downloads objects from a storage location.
// Each scheme (gs, s3, file) has one implementation.
type DocumentSource interface {
	// Scheme returns the URI scheme this source serves.
	Scheme() string

	// List returns every object under the location's prefix whose name
	// matches the extension filter, content included.
	List(ctx context.Context, loc domain.SourceLocation) ([]domain.RawDocument, error)

	// Close releases resources.
	Close() error
}

// Watcher is implemented by sources that can push changes.
// The channel is closed when ctx is cancelled.
type Watcher interface {
	Watch(ctx context.Context, loc domain.SourceLocation) (<-chan domain.RawDocumentChange, error)
}

// SourceFactory returns the DocumentSource for a scheme. The factory owns
// the sources it returns; callers do not close them.
type SourceFactory interface {
	// Source returns the source for scheme, or ErrUnsupportedSource.
	Source(ctx context.Context, scheme string) (DocumentSource, error)
}
