package html

import (
	"context"
	"fmt"
	"html"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise strips markup from raw and returns the readable text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrInvalidInput, raw.URI)
	}

	rawContent := string(raw.Content)

	meta := make(map[string]string, len(raw.Metadata)+4)
	for k, v := range raw.Metadata {
		meta[k] = v
	}
	if meta[domain.MetaTitle] == "" {
		meta[domain.MetaTitle] = extractTitle(rawContent, raw)
	}
	meta["format"] = "html"
	if raw.MIMEType != "" {
		meta["mime_type"] = raw.MIMEType
	}
	meta[domain.MetaSource] = raw.URI

	return &domain.Document{
		ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(raw.URI)).String(),
		Content:  stripHTML(rawContent),
		Metadata: meta,
	}, nil
}

// Pre-compiled regular expressions for HTML parsing.
var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	droppedElements   = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg)[^>]*>.*?</(script|style|noscript|head|svg)>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	headingOpen       = regexp.MustCompile(`(?i)<h([1-6])[^>]*>`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	lineBreaks        = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
)

// extractTitle returns the <title> text or a title derived from the name.
func extractTitle(content string, raw *domain.RawDocument) string {
	if m := titleTag.FindStringSubmatch(content); len(m) > 1 {
		if title := strings.TrimSpace(html.UnescapeString(m[1])); title != "" {
			return title
		}
	}

	name := raw.Name
	if name == "" {
		name = raw.URI
	}
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.NewReplacer("_", " ", "-", " ").Replace(base)
}

// stripHTML removes markup, keeping paragraphs on separate lines with a
// blank line between blocks.
func stripHTML(content string) string {
	content = droppedElements.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")

	content = headingOpen.ReplaceAllStringFunc(content, func(tag string) string {
		level, _ := strconv.Atoi(headingOpen.FindStringSubmatch(tag)[1])
		return "\n\n" + strings.Repeat("#", level) + " "
	})
	content = openBlockElements.ReplaceAllString(content, "\n\n")
	content = blockElements.ReplaceAllString(content, "\n\n")
	content = lineBreaks.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	var blocks []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return strings.Join(blocks, "\n\n")
}
