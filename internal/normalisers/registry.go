package normalisers

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
	"github.com/custodia-labs/ragops/internal/normalisers/html"
	"github.com/custodia-labs/ragops/internal/normalisers/markdown"
	"github.com/custodia-labs/ragops/internal/normalisers/plaintext"
)

// Verify interface compliance.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry selects a normaliser by MIME type or file extension.
type Registry struct {
	normalisers []driven.Normaliser
}

// NewRegistry creates a registry holding the given normalisers.
func NewRegistry(normalisers ...driven.Normaliser) *Registry {
	return &Registry{normalisers: normalisers}
}

// Default returns a registry with the markdown, HTML and plain text
// normalisers.
func Default() *Registry {
	return NewRegistry(markdown.New(), html.New(), plaintext.New())
}

// Register adds a normaliser.
func (r *Registry) Register(n driven.Normaliser) {
	r.normalisers = append(r.normalisers, n)
}

// Select returns the highest priority normaliser whose MIME types or
// extensions match raw, or nil. Ties go to the earliest registered.
func (r *Registry) Select(raw *domain.RawDocument) driven.Normaliser {
	mimeType := baseMIMEType(raw.MIMEType)
	ext := extension(raw)

	var best driven.Normaliser
	for _, n := range r.normalisers {
		if !matches(n.SupportedMIMETypes(), mimeType) && !matches(n.SupportedExtensions(), ext) {
			continue
		}
		if best == nil || n.Priority() > best.Priority() {
			best = n
		}
	}
	return best
}

// Normalise decodes raw with the selected normaliser.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	n := r.Select(raw)
	if n == nil {
		return nil, fmt.Errorf("%w: no normaliser for %s (type %q)", domain.ErrInvalidInput, raw.URI, raw.MIMEType)
	}
	return n.Normalise(ctx, raw)
}

func baseMIMEType(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func extension(raw *domain.RawDocument) string {
	name := raw.Name
	if name == "" {
		name = raw.URI
	}
	return strings.ToLower(path.Ext(name))
}

func matches(candidates []string, value string) bool {
	if value == "" {
		return false
	}
	for _, c := range candidates {
		if c == value {
			return true
		}
	}
	return false
}
