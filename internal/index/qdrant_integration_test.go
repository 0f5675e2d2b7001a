//go:build integration
// +build integration

package index

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 1536

// setupTestIndex connects to a local Qdrant and ensures the collection.
// Skips the test if Qdrant is not running.
func setupTestIndex(t *testing.T) *QdrantIndex {
	idx, err := NewQdrantIndex("localhost", 6334, testDimension)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = idx.EnsureCollection(context.Background())
	require.NoError(t, err, "Failed to ensure collection")

	return idx
}

func testVector(fill float32) []float32 {
	v := make([]float32, testDimension)
	for i := range v {
		v[i] = fill
	}
	return v
}

// testKey builds a key in a unique owner namespace so parallel test runs
// cannot see each other's vectors.
func testKey(t *testing.T, document string) Key {
	t.Helper()
	owner := "it-" + uuid.New().String()[:8]
	key, err := NewKey(owner, document)
	require.NoError(t, err)
	return key
}

func recordsFor(key Key, texts ...string) []Record {
	records := make([]Record, len(texts))
	for i, text := range texts {
		records[i] = Record{
			ID:         key.VectorID(i),
			Embedding:  testVector(0.1),
			Text:       text,
			PageNumber: i + 1,
			ChunkIndex: i,
		}
	}
	return records
}

func TestNamespaceIsolation(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()
	ctx := context.Background()

	keyA := testKey(t, "a.pdf")
	keyB := testKey(t, "b.pdf")

	require.NoError(t, idx.Upsert(ctx, keyA, recordsFor(keyA, "alpha one", "alpha two")))
	require.NoError(t, idx.Upsert(ctx, keyB, recordsFor(keyB, "beta one")))

	matches, err := idx.Query(ctx, keyA, testVector(0.1), 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Contains(t, m.Text, "alpha", "query must never cross the namespace boundary")
	}

	matches, err = idx.Query(ctx, keyB, testVector(0.1), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "beta one", matches[0].Text)
}

func TestReupsertOverwrites(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()
	ctx := context.Background()

	key := testKey(t, "doc.pdf")

	require.NoError(t, idx.Upsert(ctx, key, recordsFor(key, "version one")))
	require.NoError(t, idx.Upsert(ctx, key, recordsFor(key, "version two")))

	count, err := idx.Count(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count, "same vector id must overwrite, not duplicate")

	matches, err := idx.Query(ctx, key, testVector(0.1), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "version two", matches[0].Text)
}

func TestDeleteNamespace(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()
	ctx := context.Background()

	keyA := testKey(t, "a.pdf")
	keyB := testKey(t, "b.pdf")

	require.NoError(t, idx.Upsert(ctx, keyA, recordsFor(keyA, "kept")))
	require.NoError(t, idx.Upsert(ctx, keyB, recordsFor(keyB, "deleted")))

	require.NoError(t, idx.DeleteNamespace(ctx, keyB))

	countA, err := idx.Count(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), countA, "delete must not touch other namespaces")

	countB, err := idx.Count(ctx, keyB)
	require.NoError(t, err)
	assert.Zero(t, countB)
}

func TestQueryEmptyNamespace(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()

	key := testKey(t, "never-ingested.pdf")
	matches, err := idx.Query(context.Background(), key, testVector(0.1), 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatchPayloadRoundTrip(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()
	ctx := context.Background()

	key := testKey(t, "doc.pdf")
	require.NoError(t, idx.Upsert(ctx, key, []Record{{
		ID:         key.VectorID(0),
		Embedding:  testVector(0.2),
		Text:       "The mitochondria is the powerhouse of the cell.",
		PageNumber: 7,
		ChunkIndex: 0,
	}}))

	matches, err := idx.Query(ctx, key, testVector(0.2), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, key.VectorID(0), matches[0].ID)
	assert.Equal(t, "The mitochondria is the powerhouse of the cell.", matches[0].Text)
	assert.Equal(t, 7, matches[0].PageNumber)
	assert.Greater(t, matches[0].Score, float32(0.9), "identical vector should score near 1 under cosine")
}
