package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

func TestNormaliser_Capabilities(t *testing.T) {
	n := New()
	assert.ElementsMatch(t, []string{"text/markdown", "text/x-markdown"}, n.SupportedMIMETypes())
	assert.Contains(t, n.SupportedExtensions(), ".md")
	assert.Equal(t, 50, n.Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "gs://bucket/docs/getting-started.md",
		Name:     "docs/getting-started.md",
		MIMEType: "text/markdown",
		Content:  []byte("# Hello World\n\nThis is a test.\n\n## Section\n\nMore."),
		Metadata: map[string]string{"bucket": "bucket"},
	}

	doc, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "gs://bucket/docs/getting-started.md", doc.Source())
	assert.Equal(t, string(raw.Content), doc.Content, "markdown structure is preserved for chunking")
	assert.Equal(t, "Hello World", doc.Metadata[domain.MetaTitle])
	assert.Equal(t, "markdown", doc.Metadata["format"])
	assert.Equal(t, "text/markdown", doc.Metadata["mime_type"])
	assert.Equal(t, "bucket", doc.Metadata["bucket"])
}

func TestNormalise_DeterministicID(t *testing.T) {
	raw := &domain.RawDocument{URI: "s3://b/a.md", Content: []byte("a")}
	first, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	second, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestNormalise_FrontMatter(t *testing.T) {
	content := "---\n" +
		"title: Contract Law Basics\n" +
		"tags: [contracts, torts]\n" +
		"year: 2021\n" +
		"published: 2023-04-05\n" +
		"source: should-not-override\n" +
		"author:\n  name: nested\n" +
		"---\n" +
		"# Heading\n\nBody text."

	doc, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:     "file:///docs/law.md",
		Name:    "law.md",
		Content: []byte(content),
	})
	require.NoError(t, err)

	assert.Equal(t, "# Heading\n\nBody text.", doc.Content)
	assert.Equal(t, "Contract Law Basics", doc.Metadata["title"])
	assert.Equal(t, "contracts,torts", doc.Metadata["tags"])
	assert.Equal(t, "2021", doc.Metadata["year"])
	assert.Equal(t, "2023-04-05", doc.Metadata["published"])
	assert.Equal(t, "file:///docs/law.md", doc.Metadata["source"])
	assert.NotContains(t, doc.Metadata, "author")
}

func TestNormalise_FrontMatterCRLF(t *testing.T) {
	doc, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:     "file:///x.md",
		Content: []byte("---\r\ntitle: Windows\r\n---\r\nBody"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Windows", doc.Metadata["title"])
	assert.Equal(t, "Body", doc.Content)
}

func TestNormalise_UnclosedFrontMatterIsBody(t *testing.T) {
	content := "---\ntitle: nope\n\nno closing marker"
	doc, err := New().Normalise(context.Background(), &domain.RawDocument{URI: "file:///x.md", Content: []byte(content)})
	require.NoError(t, err)
	assert.Equal(t, content, doc.Content)
}

func TestNormalise_InvalidFrontMatter(t *testing.T) {
	_, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:     "file:///x.md",
		Content: []byte("---\ntitle: [unclosed\n---\nbody"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_InvalidUTF8(t *testing.T) {
	_, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:     "file:///x.md",
		Content: []byte{0xff, 0xfe, 0xfd},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_Nil(t *testing.T) {
	doc, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, doc)
}

func TestNormalise_EmptyContent(t *testing.T) {
	doc, err := New().Normalise(context.Background(), &domain.RawDocument{URI: "file:///empty-notes.md", Name: "empty-notes.md"})
	require.NoError(t, err)
	assert.Empty(t, doc.Content)
	assert.Equal(t, "empty notes", doc.Metadata["title"])
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		file    string
		want    string
	}{
		{"first h1", "intro\n# Title\n# Second", "a.md", "Title"},
		{"h2 is not a title", "## Sub", "my_notes.md", "my notes"},
		{"heading inside code fence", "```\n# not a title\n```\n", "x-y.md", "x y"},
		{"uri fallback", "", "", "doc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTitle(tt.content, tt.file, "gs://b/doc.md"))
		})
	}
}
