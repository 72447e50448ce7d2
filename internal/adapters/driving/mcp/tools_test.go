package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns matches", func(t *testing.T) {
		pipeline := &mockPipelineService{
			matches: []domain.QueryMatch{
				{
					ID:       "notes.md#0",
					Document: "This is the content",
					Distance: 0.12,
					Metadata: map[string]string{
						domain.MetaSource: "file:///notes.md",
						domain.MetaTitle:  "Notes",
					},
				},
			},
		}
		server, err := newTestServer(pipeline, &mockIndexService{})
		require.NoError(t, err)

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "notes", K: 3})

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Matches, 1)
		assert.Equal(t, "notes.md#0", output.Matches[0].ID)
		assert.Equal(t, "file:///notes.md", output.Matches[0].Source)
		assert.Equal(t, "Notes", output.Matches[0].Title)
		assert.InDelta(t, 0.12, output.Matches[0].Distance, 1e-9)
		assert.Equal(t, "This is the content", output.Matches[0].Document)
		assert.Equal(t, "notes", pipeline.lastReq.Text)
		assert.Equal(t, 3, pipeline.lastReq.K)
	})

	t.Run("default k is 5", func(t *testing.T) {
		pipeline := &mockPipelineService{}
		server, err := newTestServer(pipeline, &mockIndexService{})
		require.NoError(t, err)

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "x"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Equal(t, defaultK, pipeline.lastReq.K)
	})

	t.Run("passes where filter", func(t *testing.T) {
		pipeline := &mockPipelineService{}
		server, err := newTestServer(pipeline, &mockIndexService{})
		require.NoError(t, err)

		where := map[string]string{domain.MetaSource: "file:///a.md"}
		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "x", Where: where})

		require.NoError(t, err)
		assert.Equal(t, domain.Filter(where), pipeline.lastReq.Filter)
	})

	t.Run("returns error on retrieve failure", func(t *testing.T) {
		pipeline := &mockPipelineService{err: errors.New("embedder down")}
		server, err := newTestServer(pipeline, &mockIndexService{})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "x"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedder down")
	})
}

func TestServer_handleGetRecords(t *testing.T) {
	ctx := context.Background()

	t.Run("returns records without embeddings", func(t *testing.T) {
		index := &mockIndexService{
			records: []domain.VectorRecord{
				{ID: "a", Document: "alpha", Metadata: map[string]string{"k": "v"}},
				{ID: "b", Document: "beta"},
			},
		}
		server, err := newTestServer(&mockPipelineService{}, index)
		require.NoError(t, err)

		_, output, err := server.handleGetRecords(ctx, nil, GetRecordsInput{IDs: []string{"a", "b"}, Limit: 2, Offset: 1})

		require.NoError(t, err)
		assert.Equal(t, 2, output.Count)
		assert.Equal(t, "alpha", output.Records[0].Document)
		assert.Equal(t, "v", output.Records[0].Metadata["k"])
		assert.Equal(t, []string{"a", "b"}, index.lastGet.IDs)
		assert.Equal(t, 2, index.lastGet.Limit)
		assert.Equal(t, 1, index.lastGet.Offset)
		assert.False(t, index.lastGet.Include.Has(domain.IncludeEmbeddings))
	})

	t.Run("returns error on get failure", func(t *testing.T) {
		index := &mockIndexService{err: domain.ErrTransport}
		server, err := newTestServer(&mockPipelineService{}, index)
		require.NoError(t, err)

		_, _, err = server.handleGetRecords(ctx, nil, GetRecordsInput{})

		assert.ErrorIs(t, err, domain.ErrTransport)
	})
}

func TestServer_handlePeek(t *testing.T) {
	index := &mockIndexService{records: []domain.VectorRecord{{ID: "a"}}}
	server, err := newTestServer(&mockPipelineService{}, index)
	require.NoError(t, err)

	_, output, err := server.handlePeek(context.Background(), nil, PeekInput{N: 4})

	require.NoError(t, err)
	assert.Equal(t, 1, output.Count)
	assert.Equal(t, 4, index.lastPeek)
}

func TestServer_handleCount(t *testing.T) {
	t.Run("returns count", func(t *testing.T) {
		server, err := newTestServer(&mockPipelineService{}, &mockIndexService{count: 42})
		require.NoError(t, err)

		_, output, err := server.handleCount(context.Background(), nil, struct{}{})

		require.NoError(t, err)
		assert.Equal(t, 42, output.Count)
	})

	t.Run("unsupported backend", func(t *testing.T) {
		index := &mockIndexService{countErr: domain.ErrUnsupportedOperation}
		server, err := newTestServer(&mockPipelineService{}, index)
		require.NoError(t, err)

		_, _, err = server.handleCount(context.Background(), nil, struct{}{})

		assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)
	})
}
