package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Matches(t *testing.T) {
	meta := map[string]string{"source": "gs://b/a.md", "lang": "en"}

	assert.True(t, Filter(nil).Matches(meta))
	assert.True(t, Filter{"lang": "en"}.Matches(meta))
	assert.True(t, Filter{"lang": "en", "source": "gs://b/a.md"}.Matches(meta))
	assert.False(t, Filter{"lang": "fr"}.Matches(meta))
	assert.False(t, Filter{"missing": ""}.Matches(meta))
}

func TestInclude(t *testing.T) {
	t.Run("empty includes everything", func(t *testing.T) {
		var in Include
		assert.True(t, in.Has(IncludeEmbeddings))
		assert.True(t, in.Has(IncludeDocuments))
		assert.True(t, in.Has(IncludeMetadatas))
		assert.Equal(t, []string{"embeddings", "documents", "metadatas"}, in.Strings())
	})

	t.Run("apply clears unselected fields", func(t *testing.T) {
		rec := VectorRecord{
			ID:        "a",
			Embedding: []float32{1},
			Document:  "text",
			Metadata:  map[string]string{"k": "v"},
		}

		got := Include{IncludeDocuments}.Apply(rec)

		assert.Equal(t, "a", got.ID)
		assert.Equal(t, "text", got.Document)
		assert.Nil(t, got.Embedding)
		assert.Nil(t, got.Metadata)
	})
}

func TestDeleteRequest_IsEmpty(t *testing.T) {
	assert.True(t, DeleteRequest{}.IsEmpty())
	assert.False(t, DeleteRequest{IDs: []string{"x"}}.IsEmpty())
	assert.False(t, DeleteRequest{Filter: Filter{"a": "b"}}.IsEmpty())
}

func TestDistanceMetric_IsValid(t *testing.T) {
	assert.True(t, MetricCosine.IsValid())
	assert.True(t, MetricEuclidean.IsValid())
	assert.True(t, MetricDot.IsValid())
	assert.False(t, DistanceMetric("manhattan").IsValid())
}
