// Package plaintext is the fallback normaliser for text formats.
package plaintext

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/x-rst",
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/x-go",
		"text/x-python",
		"text/x-rust",
		"text/x-shellscript",
		"text/x-sql",
		"text/typescript",
		"text/javascript",
		"application/json",
		"application/xml",
	}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".txt", ".text", ".rst", ".csv", ".log", ".json", ".yaml", ".yml", ".toml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise decodes raw as UTF-8 text unchanged.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrInvalidInput, raw.URI)
	}

	meta := make(map[string]string, len(raw.Metadata)+4)
	for k, v := range raw.Metadata {
		meta[k] = v
	}
	if meta[domain.MetaTitle] == "" {
		meta[domain.MetaTitle] = extractTitle(raw)
	}
	meta["format"] = "text"
	if raw.MIMEType != "" {
		meta["mime_type"] = raw.MIMEType
	}
	meta[domain.MetaSource] = raw.URI

	return &domain.Document{
		ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(raw.URI)).String(),
		Content:  string(raw.Content),
		Metadata: meta,
	}, nil
}

// extractTitle derives a human-readable title from the object name.
func extractTitle(raw *domain.RawDocument) string {
	name := raw.Name
	if name == "" {
		name = raw.URI
	}
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.NewReplacer("_", " ", "-", " ").Replace(base)
}
