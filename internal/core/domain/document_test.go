package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDocument_Source tests provenance lookup
func TestDocument_Source(t *testing.T) {
	doc := Document{
		Content:  "hello",
		Metadata: map[string]string{MetaSource: "gs://bucket/a.md"},
	}
	assert.Equal(t, "gs://bucket/a.md", doc.Source())

	assert.Empty(t, Document{}.Source())
}

// TestNewChunkMetadata tests that chunk metadata is a copy plus sequence_index
func TestNewChunkMetadata(t *testing.T) {
	docMeta := map[string]string{MetaSource: "s3://b/k", "author": "ana"}

	meta := NewChunkMetadata(docMeta, 3)

	assert.Equal(t, "3", meta[MetaSequenceIndex])
	assert.Equal(t, "ana", meta["author"])
	assert.Equal(t, "s3://b/k", meta[MetaSource])
	_, leaked := docMeta[MetaSequenceIndex]
	assert.False(t, leaked, "document metadata must not be modified")
}

func TestNewChunkMetadata_NilDocumentMetadata(t *testing.T) {
	meta := NewChunkMetadata(nil, 0)
	require.NotNil(t, meta)
	assert.Equal(t, "0", meta[MetaSequenceIndex])
}

// TestChunk_Len counts characters, not bytes
func TestChunk_Len(t *testing.T) {
	assert.Equal(t, 5, Chunk{Content: "héllo"}.Len())
	assert.Equal(t, 0, Chunk{}.Len())
}

func TestReconstruct(t *testing.T) {
	tests := []struct {
		name   string
		chunks []Chunk
		want   string
	}{
		{
			name: "no chunks",
			want: "",
		},
		{
			name:   "single chunk",
			chunks: []Chunk{{Content: "abc"}},
			want:   "abc",
		},
		{
			name: "overlapping chunks",
			chunks: []Chunk{
				{Content: "hello wor"},
				{Content: "world", Overlap: 3},
			},
			want: "hello world",
		},
		{
			name: "multibyte overlap",
			chunks: []Chunk{
				{Content: "añob"},
				{Content: "obé", Overlap: 2},
			},
			want: "añobé",
		},
		{
			name: "overlap on first chunk is ignored",
			chunks: []Chunk{
				{Content: "abc", Overlap: 2},
			},
			want: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reconstruct(tt.chunks))
		})
	}
}
