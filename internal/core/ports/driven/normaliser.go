package driven

import (
	"context"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

// Normaliser turns raw bytes into a text document.
// Each normaliser handles specific MIME types or file extensions.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// SupportedExtensions returns file extensions (with dot) this
	// normaliser handles when the source reports no MIME type.
	SupportedExtensions() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise decodes raw into a document. The document metadata
	// always carries "source" set to raw.URI.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)
}

// NormaliserRegistry selects the normaliser for a raw document.
type NormaliserRegistry interface {
	// Normalise decodes raw with the best matching normaliser.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)
}
