// Package rag defines the retrieval interfaces and implementations:
// embedding, the in-memory vector index, and the budgeted retriever.
// Concrete index backends (in-memory, Qdrant) satisfy the Index interface
// so the retriever never depends on a specific one, and an approximate
// backend can be swapped in later without touching callers.
package rag

import (
	"context"

	"github.com/wencm/recetona-go/internal/chunker"
)

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID identifies the embedding model and version. It is folded
	// into every chunk fingerprint, so two embedders with the same
	// ModelID must produce interchangeable vectors.
	ModelID() string
}

// IndexEntry is one indexed chunk: its cache fingerprint, its vector,
// and a back-reference to the chunk it was computed from. Entries are
// materialized from the embedding cache on every rebuild and have no
// independent persistence.
type IndexEntry struct {
	// Fingerprint is the content-hash cache key of the chunk.
	Fingerprint string

	// Vector is the embedding, in the corpus model's dimensionality.
	Vector []float32

	// Chunk is the retrieval unit this vector represents.
	Chunk chunker.Chunk
}

// Scored is one similarity search hit.
type Scored struct {
	// Chunk is the matched retrieval unit.
	Chunk chunker.Chunk

	// Score is the cosine similarity to the query vector (-1.0–1.0).
	Score float32
}

// Index performs top-K similarity search over the embedded corpus.
// Query may be called concurrently by any number of readers; Rebuild
// requires exclusive access relative to queries and replaces the whole
// corpus at once.
type Index interface {
	// Rebuild replaces the index contents with entries.
	Rebuild(ctx context.Context, entries []IndexEntry) error

	// Query returns the k most similar entries to vector, ordered by
	// descending score with deterministic tie-breaks (ascending chunk
	// sequence number, then ascending source record id).
	Query(ctx context.Context, vector []float32, k int) ([]Scored, error)

	// Len returns the number of indexed entries.
	Len() int
}
