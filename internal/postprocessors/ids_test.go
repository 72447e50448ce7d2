package postprocessors

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

func sampleChunks() []domain.Chunk {
	return []domain.Chunk{
		{Source: "gs://b/a.md", Index: 0, Content: "alpha"},
		{Source: "gs://b/a.md", Index: 1, Content: "beta"},
		{Source: "gs://b/c.md", Index: 0, Content: "alpha"},
	}
}

func TestChunkID_Deterministic(t *testing.T) {
	a := ChunkID("gs://b/a.md", 3)
	b := ChunkID("gs://b/a.md", 3)

	assert.Equal(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)

	assert.NotEqual(t, a, ChunkID("gs://b/a.md", 4))
	assert.NotEqual(t, a, ChunkID("gs://b/other.md", 3))
}

func TestAssignIDs_SourceStrategy(t *testing.T) {
	first := sampleChunks()
	second := sampleChunks()

	require.NoError(t, AssignIDs(first, domain.IDStrategySource))
	require.NoError(t, AssignIDs(second, domain.IDStrategySource))

	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "re-ingestion must produce the same ids")
	}
	assert.NotEqual(t, first[0].ID, first[2].ID, "same index in different sources must differ")
}

func TestAssignIDs_ContentStrategy(t *testing.T) {
	chunks := sampleChunks()
	require.NoError(t, AssignIDs(chunks, domain.IDStrategyContent))

	assert.NotEqual(t, chunks[0].ID, chunks[2].ID, "same text in different sources must differ")

	edited := sampleChunks()
	edited[0].Content = "alpha!"
	require.NoError(t, AssignIDs(edited, domain.IDStrategyContent))
	assert.NotEqual(t, chunks[0].ID, edited[0].ID)
	assert.Equal(t, chunks[1].ID, edited[1].ID)
}

func TestAssignIDs_PositionalStrategy(t *testing.T) {
	chunks := sampleChunks()
	require.NoError(t, AssignIDs(chunks, domain.IDStrategyPositional))

	assert.Equal(t, "doc_0", chunks[0].ID)
	assert.Equal(t, "doc_1", chunks[1].ID)
	assert.Equal(t, "doc_2", chunks[2].ID)
}

func TestAssignIDs_UnknownStrategy(t *testing.T) {
	err := AssignIDs(sampleChunks(), "random")
	assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration))
}
