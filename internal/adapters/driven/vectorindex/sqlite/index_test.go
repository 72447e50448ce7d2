package sqlite

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragops/internal/adapters/driven/vectorindex/sqlite/migrations"
	"github.com/custodia-labs/ragops/internal/core/domain"
)

// setupTestIndex creates a SQLite index in a temporary directory.
func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	idx, err := NewIndex(filepath.Join(t.TempDir(), "index.db"), domain.MetricCosine)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, idx.Close())
	})
	return idx
}

func testRecords() []domain.VectorRecord {
	return []domain.VectorRecord{
		{ID: "a", Embedding: []float32{1, 0, 0}, Document: "alpha", Metadata: map[string]string{"source": "gs://b/one.md", "sequence_index": "0"}},
		{ID: "b", Embedding: []float32{0, 1, 0}, Document: "beta", Metadata: map[string]string{"source": "gs://b/two.md", "sequence_index": "0"}},
		{ID: "c", Embedding: []float32{0.9, 0.1, 0}, Document: "gamma", Metadata: map[string]string{"source": "gs://b/one.md", "sequence_index": "1"}},
	}
}

func TestNewIndex_ErrorHandling(t *testing.T) {
	_, err := NewIndex("/invalid\x00path/index.db", domain.MetricCosine)
	assert.Error(t, err)
}

func TestNewIndex_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.db")
	ctx := context.Background()

	idx, err := NewIndex(path, domain.MetricCosine)
	require.NoError(t, err)
	assert.Equal(t, path, idx.Path())
	require.NoError(t, idx.Upsert(ctx, testRecords()))
	require.NoError(t, idx.Close())

	// Migrations must not re-run on an existing database.
	idx, err = NewIndex(path, domain.MetricCosine)
	require.NoError(t, err)
	defer idx.Close()

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIndex_UpsertAndGet(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, testRecords()))

	got, err := idx.Get(ctx, domain.GetRequest{IDs: []string{"b", "a"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "beta", got[0].Document)
	assert.Equal(t, []float32{0, 1, 0}, got[0].Embedding)
	assert.Equal(t, "gs://b/two.md", got[0].Metadata["source"])
	assert.Equal(t, "a", got[1].ID)
}

func TestIndex_UpsertIsIdempotent(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, testRecords()))
	require.NoError(t, idx.Upsert(ctx, testRecords()))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIndex_UpsertOverwriteKeepsOrder(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, testRecords()))

	require.NoError(t, idx.Upsert(ctx, []domain.VectorRecord{
		{ID: "a", Embedding: []float32{0, 0, 1}, Document: "alpha v2"},
	}))

	got, err := idx.Get(ctx, domain.GetRequest{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "alpha v2", got[0].Document)
	assert.Nil(t, got[0].Metadata)
}

func TestIndex_GetFilter(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, testRecords()))

	got, err := idx.Get(ctx, domain.GetRequest{Filter: domain.Filter{"source": "gs://b/one.md"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	got, err = idx.Get(ctx, domain.GetRequest{Filter: domain.Filter{
		"source":         "gs://b/one.md",
		"sequence_index": "1",
	}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func TestIndex_GetPage(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, testRecords()))

	got, err := idx.Get(ctx, domain.GetRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)

	got, err = idx.Get(ctx, domain.GetRequest{Offset: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func TestIndex_GetInclude(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, testRecords()))

	got, err := idx.Get(ctx, domain.GetRequest{
		IDs:     []string{"a"},
		Include: domain.Include{domain.IncludeMetadatas},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Document)
	assert.Nil(t, got[0].Embedding)
	assert.NotNil(t, got[0].Metadata)
}

func TestIndex_Query(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, testRecords()))

	got, err := idx.Query(ctx, domain.QueryRequest{Embedding: []float32{1, 0, 0}, K: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Equal(t, "alpha", got[0].Document)
	assert.Less(t, got[0].Distance, got[1].Distance)
}

func TestIndex_QueryWithFilter(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, testRecords()))

	got, err := idx.Query(ctx, domain.QueryRequest{
		Embedding: []float32{1, 0, 0},
		K:         5,
		Filter:    domain.Filter{"source": "gs://b/two.md"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestIndex_QueryEuclidean(t *testing.T) {
	idx, err := NewIndex(filepath.Join(t.TempDir(), "index.db"), domain.MetricEuclidean)
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, testRecords()))

	got, err := idx.Query(ctx, domain.QueryRequest{Embedding: []float32{0, 1, 0}, K: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
	assert.InDelta(t, 0, got[0].Distance, 1e-9)
}

func TestIndex_Delete(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, testRecords()))

	n, err := idx.Delete(ctx, domain.DeleteRequest{IDs: []string{"does-not-exist"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = idx.Delete(ctx, domain.DeleteRequest{Filter: domain.Filter{"source": "gs://b/one.md"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = idx.Delete(ctx, domain.DeleteRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndex_UpsertRejectsOtherDimensions(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, testRecords()))

	err := idx.Upsert(ctx, []domain.VectorRecord{
		{ID: "d", Embedding: []float32{1, 0, 0}},
		{ID: "e", Embedding: []float32{1, 0}},
	})
	var dimErr *domain.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)
	assert.Equal(t, "e", dimErr.ID)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "the batch is rejected whole")
}

func TestIndex_UpsertRejectsMixedFirstBatch(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	err := idx.Upsert(ctx, []domain.VectorRecord{
		{ID: "a", Embedding: []float32{1, 0, 0}},
		{ID: "b", Embedding: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	dims, err := idx.Dimensions(ctx)
	require.NoError(t, err)
	assert.Zero(t, dims, "a rejected batch fixes nothing")
}

func TestIndex_QueryRejectsOtherDimensions(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	got, err := idx.Query(ctx, domain.QueryRequest{Embedding: []float32{1, 0, 0, 0, 0}, K: 1})
	require.NoError(t, err, "an empty index accepts any size")
	assert.Empty(t, got)

	require.NoError(t, idx.Upsert(ctx, testRecords()))
	_, err = idx.Query(ctx, domain.QueryRequest{Embedding: []float32{1, 0, 0, 0, 0}, K: 1})
	var dimErr *domain.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 5, dimErr.Got)
}

func TestIndex_DimensionsPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	idx, err := NewIndex(path, domain.MetricCosine)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, testRecords()))
	_, err = idx.Delete(ctx, domain.DeleteRequest{IDs: []string{"a", "b", "c"}})
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	idx, err = NewIndex(path, domain.MetricCosine)
	require.NoError(t, err)
	defer idx.Close()

	dims, err := idx.Dimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dims)
	assert.ErrorIs(t, idx.Upsert(ctx, []domain.VectorRecord{{ID: "x", Embedding: []float32{1, 0}}}),
		domain.ErrDimensionMismatch)
}

func TestIndex_MetaMigrationBackfillsDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	// A database written before index_meta existed.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)
	first, err := fs.ReadFile(migrations.FS, "001_records.up.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(first))
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO records (id, embedding) VALUES (?, ?)", "old", float32SliceToBytes([]float32{1, 2, 3, 4}))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	idx, err := NewIndex(path, domain.MetricCosine)
	require.NoError(t, err)
	defer idx.Close()

	dims, err := idx.Dimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)
}

func TestFloat32Blob_RoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
