// Package markdown decodes Markdown documents, lifting YAML front matter
// into document metadata.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// reservedKeys are metadata keys front matter may not override.
var reservedKeys = map[string]bool{
	domain.MetaSource:        true,
	domain.MetaSequenceIndex: true,
	"text":                   true,
}

// Normaliser handles Markdown documents. The body is kept as Markdown so
// the chunker can split along headings.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".md", ".markdown", ".mdx"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise decodes raw as UTF-8 Markdown. Front matter scalars become
// metadata entries; the title comes from front matter, then the first
// H1, then the file name.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrInvalidInput, raw.URI)
	}

	front, body, err := splitFrontMatter(raw.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: front matter in %s: %v", domain.ErrInvalidInput, raw.URI, err)
	}

	meta := make(map[string]string, len(raw.Metadata)+len(front)+4)
	for k, v := range raw.Metadata {
		meta[k] = v
	}
	for k, v := range front {
		if !reservedKeys[k] {
			meta[k] = v
		}
	}

	content := string(body)
	if meta[domain.MetaTitle] == "" {
		meta[domain.MetaTitle] = extractTitle(content, raw.Name, raw.URI)
	}
	meta["format"] = "markdown"
	if raw.MIMEType != "" {
		meta["mime_type"] = raw.MIMEType
	}
	meta[domain.MetaSource] = raw.URI

	return &domain.Document{
		ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(raw.URI)).String(),
		Content:  content,
		Metadata: meta,
	}, nil
}

// splitFrontMatter separates a leading "---" YAML block from the body.
// Content without a closed block is returned unchanged.
func splitFrontMatter(content []byte) (map[string]string, []byte, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	var rest []byte
	switch {
	case bytes.HasPrefix(content, []byte("---\n")):
		rest = content[4:]
	case bytes.HasPrefix(content, []byte("---\r\n")):
		rest = content[5:]
	default:
		return nil, content, nil
	}

	end := -1
	var after []byte
	for _, marker := range []string{"\n---\n", "\n---\r\n"} {
		if i := bytes.Index(rest, []byte(marker)); i >= 0 && (end < 0 || i < end) {
			end = i
			after = rest[i+len(marker):]
		}
	}
	if end < 0 && bytes.HasSuffix(rest, []byte("\n---")) {
		end = len(rest) - 4
		after = nil
	}
	if end < 0 {
		return nil, content, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(rest[:end], &fields); err != nil {
		return nil, nil, err
	}
	return flatten(fields), after, nil
}

// flatten stringifies scalar values and comma-joins scalar lists.
// Nested maps are skipped.
func flatten(fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
		case map[string]any:
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				if _, nested := item.(map[string]any); nested || item == nil {
					continue
				}
				parts = append(parts, fmt.Sprint(item))
			}
			out[k] = strings.Join(parts, ",")
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// extractTitle returns the first H1 heading or a title derived from the
// file name.
func extractTitle(content, name, uri string) string {
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}

	if name == "" {
		name = uri
	}
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.NewReplacer("_", " ", "-", " ").Replace(base)
}
