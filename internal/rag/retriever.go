package rag

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultTopK is the default number of candidates pulled from the
	// index before diversity and budget filtering.
	DefaultTopK = 10

	// DefaultPerRecordCap limits how many chunks of one product can enter
	// the context, so a single long record cannot crowd out the rest.
	DefaultPerRecordCap = 2
)

// Retriever turns a natural-language query into a budgeted selection of
// catalog chunks: embed the query once, rank candidates by cosine
// similarity, enforce per-record diversity, then greedily pack whole
// chunks under the character budget. The selection is deterministic for
// a fixed corpus and query.
type Retriever struct {
	index    Index
	embedder Embedder

	topK         int
	perRecordCap int
	minScore     float32
}

// RetrieverOption customizes a Retriever.
type RetrieverOption func(*Retriever)

// WithTopK sets how many candidates are pulled from the index.
func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithPerRecordCap limits chunks per source record.
func WithPerRecordCap(n int) RetrieverOption {
	return func(r *Retriever) {
		if n > 0 {
			r.perRecordCap = n
		}
	}
}

// WithMinScore drops candidates scoring below floor. Zero disables the
// floor. A weak best match is still better than nothing for the
// synthesizer to ground on, so the floor is off by default.
func WithMinScore(floor float32) RetrieverOption {
	return func(r *Retriever) { r.minScore = floor }
}

// NewRetriever builds a Retriever over index and embedder.
func NewRetriever(index Index, embedder Embedder, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		index:        index,
		embedder:     embedder,
		topK:         DefaultTopK,
		perRecordCap: DefaultPerRecordCap,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve selects chunks for query under budgetChars. An empty corpus or
// no candidate above the similarity floor returns an empty slice, not an
// error. A chunk that would overflow the remaining budget is skipped
// whole, never truncated, and packing continues with smaller candidates.
func (r *Retriever) Retrieve(ctx context.Context, query string, budgetChars int) ([]Scored, error) {
	if strings.TrimSpace(query) == "" || budgetChars <= 0 {
		return nil, nil
	}
	if r.index.Len() == 0 {
		return nil, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retriever: embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("retriever: embedder returned %d vectors for one query", len(vectors))
	}

	candidates, err := r.index.Query(ctx, vectors[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("retriever: index query: %w", err)
	}

	selected := make([]Scored, 0, len(candidates))
	perRecord := make(map[string]int)
	remaining := budgetChars
	for _, c := range candidates {
		if r.minScore > 0 && c.Score < r.minScore {
			break // candidates are score-descending, the rest are below the floor too
		}
		if perRecord[c.Chunk.RecordID] >= r.perRecordCap {
			continue
		}
		if len(c.Chunk.Text) > remaining {
			continue
		}
		selected = append(selected, c)
		perRecord[c.Chunk.RecordID]++
		remaining -= len(c.Chunk.Text)
	}
	return selected, nil
}

// ContextText joins selected chunks into the grounding block handed to
// the synthesizer, separated by blank lines, in selection order.
func ContextText(selected []Scored) string {
	if len(selected) == 0 {
		return ""
	}
	parts := make([]string, len(selected))
	for i, s := range selected {
		parts[i] = s.Chunk.Text
	}
	return strings.Join(parts, "\n\n")
}
