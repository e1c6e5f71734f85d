package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"github.com/wencm/recetona-go/internal/chunker"
)

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Index against a remote Qdrant instance. It is an
// optional backend for corpora too large for the in-memory index; the
// rebuild-replaces-everything contract is preserved by recreating the
// collection on every rebuild.
type QdrantIndex struct {
	client *qdrant.Client
	cfg    *QdrantConfig

	mu  sync.RWMutex
	len int
}

// NewQdrantIndex connects to the configured Qdrant instance. The
// collection is created lazily on the first Rebuild, once the vector
// dimensionality is known.
func NewQdrantIndex(cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name is required")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantIndex{client: client, cfg: cfg}, nil
}

// Rebuild drops and recreates the collection, then upserts every entry.
func (q *QdrantIndex) Rebuild(ctx context.Context, entries []IndexEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	exists, err := q.client.CollectionExists(ctx, q.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, q.cfg.Collection); err != nil {
			return fmt.Errorf("qdrant: failed to drop collection %q: %w", q.cfg.Collection, err)
		}
	}
	q.len = 0
	if len(entries) == 0 {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(len(entries[0].Vector)),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", q.cfg.Collection, err)
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for i, e := range entries {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(i)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"fingerprint": e.Fingerprint,
				"record_id":   e.Chunk.RecordID,
				"seq":         int64(e.Chunk.Seq),
				"text":        e.Chunk.Text,
			}),
		})
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	q.len = len(entries)
	return nil
}

// Query performs a cosine similarity search and returns the top-k hits
// with the same deterministic ordering as the in-memory index.
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, k int) ([]Scored, error) {
	if k <= 0 {
		return nil, nil
	}
	q.mu.RLock()
	empty := q.len == 0
	q.mu.RUnlock()
	if empty {
		return nil, nil
	}

	limit := uint64(k)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	scored := make([]Scored, 0, len(results))
	for _, r := range results {
		p := r.Payload
		if p == nil {
			continue
		}
		scored = append(scored, Scored{
			Chunk: chunker.Chunk{
				RecordID: p["record_id"].GetStringValue(),
				Seq:      int(p["seq"].GetIntegerValue()),
				Text:     p["text"].GetStringValue(),
			},
			Score: r.Score,
		})
	}

	// Qdrant orders by score only; apply the seq/record-id tie-break so
	// results match the in-memory backend exactly.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Chunk.Seq != scored[j].Chunk.Seq {
			return scored[i].Chunk.Seq < scored[j].Chunk.Seq
		}
		return scored[i].Chunk.RecordID < scored[j].Chunk.RecordID
	})

	return scored, nil
}

// Len returns the number of entries upserted by the last Rebuild.
func (q *QdrantIndex) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.len
}

// Ping checks that the Qdrant instance is reachable.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("rag: qdrant health check: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
