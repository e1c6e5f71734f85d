package rag

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/wencm/recetona-go/internal/errs"
)

// MemoryIndex is a brute-force cosine similarity index held entirely in
// memory. The catalog corpus is small enough (thousands of chunks) that a
// linear scan outperforms approximate structures while staying exact.
// Rebuild swaps the whole entry set atomically under the write lock, so
// queries either see the previous corpus or the new one, never a mix.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []IndexEntry
	dims    int
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Rebuild replaces the index contents with entries. All entries must
// share one dimensionality; a mixed batch is rejected as a validation
// error since it indicates fingerprinting went wrong upstream.
func (m *MemoryIndex) Rebuild(_ context.Context, entries []IndexEntry) error {
	dims := 0
	for i := range entries {
		if len(entries[i].Vector) == 0 {
			return errs.Validation("index entry %s has an empty vector", entries[i].Fingerprint)
		}
		if dims == 0 {
			dims = len(entries[i].Vector)
		} else if len(entries[i].Vector) != dims {
			return errs.Validation("index entry %s has %d dimensions, corpus has %d",
				entries[i].Fingerprint, len(entries[i].Vector), dims)
		}
	}

	cp := make([]IndexEntry, len(entries))
	copy(cp, entries)

	m.mu.Lock()
	m.entries = cp
	m.dims = dims
	m.mu.Unlock()
	return nil
}

// Query returns the k most similar entries to vector. An empty index
// returns an empty result, not an error. Scores and ordering are
// deterministic for a fixed corpus and query.
func (m *MemoryIndex) Query(_ context.Context, vector []float32, k int) ([]Scored, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return nil, nil
	}
	if len(vector) != m.dims {
		return nil, errs.Validation("query vector has %d dimensions, index has %d", len(vector), m.dims)
	}

	scored := make([]Scored, 0, len(m.entries))
	for i := range m.entries {
		scored = append(scored, Scored{
			Chunk: m.entries[i].Chunk,
			Score: cosineSimilarity(vector, m.entries[i].Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Chunk.Seq != scored[j].Chunk.Seq {
			return scored[i].Chunk.Seq < scored[j].Chunk.Seq
		}
		return scored[i].Chunk.RecordID < scored[j].Chunk.RecordID
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Len returns the number of indexed entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// cosineSimilarity computes the cosine of the angle between two vectors
// of equal length. A zero vector yields 0.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
