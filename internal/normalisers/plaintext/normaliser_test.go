package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

func TestNormaliser_Capabilities(t *testing.T) {
	n := New()
	assert.Contains(t, n.SupportedMIMETypes(), "text/plain")
	assert.NotContains(t, n.SupportedMIMETypes(), "text/html")
	assert.Contains(t, n.SupportedExtensions(), ".txt")
	assert.Equal(t, 5, n.Priority())
}

func TestNormalise(t *testing.T) {
	tests := []struct {
		name      string
		raw       *domain.RawDocument
		wantTitle string
	}{
		{
			name: "name gives title",
			raw: &domain.RawDocument{
				URI:     "s3://bkt/notes/meeting_notes-2024.txt",
				Name:    "notes/meeting_notes-2024.txt",
				Content: []byte("line one\nline two"),
			},
			wantTitle: "meeting notes 2024",
		},
		{
			name: "uri fallback",
			raw: &domain.RawDocument{
				URI:     "file:///tmp/readme.txt",
				Content: []byte("x"),
			},
			wantTitle: "readme",
		},
		{
			name: "metadata title wins",
			raw: &domain.RawDocument{
				URI:      "gs://b/a.txt",
				Content:  []byte("x"),
				Metadata: map[string]string{"title": "Given"},
			},
			wantTitle: "Given",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := New().Normalise(context.Background(), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, string(tt.raw.Content), doc.Content)
			assert.Equal(t, tt.raw.URI, doc.Source())
			assert.Equal(t, tt.wantTitle, doc.Metadata[domain.MetaTitle])
			assert.Equal(t, "text", doc.Metadata["format"])
			assert.NotEmpty(t, doc.ID)
		})
	}
}

func TestNormalise_SourceCannotBeSpoofed(t *testing.T) {
	doc, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:      "gs://b/a.txt",
		Metadata: map[string]string{"source": "elsewhere"},
	})
	require.NoError(t, err)
	assert.Equal(t, "gs://b/a.txt", doc.Source())
}

func TestNormalise_Errors(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New().Normalise(context.Background(), &domain.RawDocument{URI: "x", Content: []byte{0xc3, 0x28}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
