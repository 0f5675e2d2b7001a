// Package index provides the namespace-scoped vector index the ingestion
// pipeline upserts into and the retrieval path queries. Namespaces isolate
// one owner/document pair; a query against a namespace only ever returns
// vectors upserted into it.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// CollectionName is the single Qdrant collection holding all chunk vectors.
const CollectionName = "pdf_chunks"

// Record is one chunk vector plus its retrieval metadata.
type Record struct {
	ID         string // deterministic: owner_document_chunkIndex
	Embedding  []float32
	Text       string
	PageNumber int
	ChunkIndex int
}

// Match is a retrieval result, ordered by descending similarity score.
type Match struct {
	ID         string  `json:"id"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
	PageNumber int     `json:"page_number,omitempty"`
}

// QdrantIndex wraps the Qdrant client with namespace scoping, retries and
// health checks.
type QdrantIndex struct {
	client    *qdrant.Client
	dimension uint64
}

// NewQdrantIndex connects to Qdrant and validates health with retry,
// failing fast if the server is unreachable.
func NewQdrantIndex(host string, port int, dimension int) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{
		client:    client,
		dimension: uint64(dimension),
	}

	if err := idx.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrIndexUnreachable, err)
	}

	return idx, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (q *QdrantIndex) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return q.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (q *QdrantIndex) Health(ctx context.Context) error {
	result, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection ensures the chunk collection exists with cosine-distance
// vectors and a keyword index on the namespace field. Idempotent.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Without the keyword index, every namespace-filtered query scans the
	// whole collection.
	for _, field := range []string{"namespace", "vector_id"} {
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// Close closes the Qdrant client connection.
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// pointID derives the deterministic Qdrant point UUID from the namespace and
// vector id, so upserting the same id always overwrites the same point and
// ids can never collide across namespaces.
func pointID(namespace, vectorID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(namespace+"/"+vectorID)).String())
}

// namespaceFilter restricts an operation to a single namespace. The filter is
// mandatory on every read and delete; it is what upholds tenant isolation.
func namespaceFilter(key Key) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("namespace", key.String()),
		},
	}
}

// Upsert stores records under the given namespace, overwriting any existing
// record sharing the same id. Records are batched in groups of 100.
func (q *QdrantIndex) Upsert(ctx context.Context, key Key, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	for i, rec := range records {
		if uint64(len(rec.Embedding)) != q.dimension {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(rec.Embedding), q.dimension)
		}
	}

	namespace := key.String()
	batchSize := 100
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		batch := records[i:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for j, rec := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      pointID(namespace, rec.ID),
				Vectors: qdrant.NewVectors(rec.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					"namespace":   namespace,
					"vector_id":   rec.ID,
					"text":        rec.Text,
					"page_number": rec.PageNumber,
					"chunk_index": rec.ChunkIndex,
				}),
			}
		}

		if err := q.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// upsertWithRetry performs an upsert with exponential backoff retry.
func (q *QdrantIndex) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Query returns up to topK matches from the namespace, ordered by descending
// similarity. An empty namespace yields an empty result, never an error.
func (q *QdrantIndex) Query(ctx context.Context, key Key, vector []float32, topK int) ([]Match, error) {
	if uint64(len(vector)) != q.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), q.dimension)
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         namespaceFilter(key),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query namespace %q: %w", key.String(), err)
	}

	matches := make([]Match, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		matches = append(matches, Match{
			ID:         payload["vector_id"].GetStringValue(),
			Score:      result.Score,
			Text:       payload["text"].GetStringValue(),
			PageNumber: int(payload["page_number"].GetIntegerValue()),
		})
	}

	return matches, nil
}

// DeleteNamespace removes every vector in the namespace. Called before
// re-ingestion so a shrinking document leaves no stale trailing vectors.
func (q *QdrantIndex) DeleteNamespace(ctx context.Context, key Key) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points:         qdrant.NewPointsSelectorFilter(namespaceFilter(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete namespace %q: %w", key.String(), err)
	}
	return nil
}

// Count returns the exact number of vectors in the namespace.
func (q *QdrantIndex) Count(ctx context.Context, key Key) (uint64, error) {
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: CollectionName,
		Filter:         namespaceFilter(key),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count namespace %q: %w", key.String(), err)
	}
	return count, nil
}
