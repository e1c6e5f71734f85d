// Package chunker turns catalog records into retrieval units. Chunking is
// a pure function of the record and the policy: the same record under the
// same policy version always yields byte-identical chunks, which is what
// makes content-addressed embedding caching sound.
package chunker

import (
	"github.com/wencm/recetona-go/internal/catalog"
)

// PolicyVersion identifies the chunking algorithm. It is folded into every
// chunk fingerprint, so bumping it invalidates all cached embeddings on
// the next refresh. Bump it whenever the chunk text layout changes.
const PolicyVersion = 2

// DefaultChunkSize is the default maximum number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters repeated between
// consecutive chunks of the same record.
const DefaultChunkOverlap = 100

// Chunk is one retrieval unit derived from a single ProductRecord.
type Chunk struct {
	// RecordID is the source product identifier.
	RecordID string

	// Seq is the chunk-local sequence number, starting at 0.
	Seq int

	// Text is the chunk content. Concatenating a record's chunk texts in
	// Seq order covers every retrievable field of the record.
	Text string
}

// Chunker splits records into chunks under a fixed size/overlap policy.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// Chunk splits one record into its retrieval units. Chunk 0 always starts
// with the product card; records whose card text exceeds the chunk size
// continue in overlapping chunks. Every record yields at least one chunk.
func (c *Chunker) Chunk(rec catalog.ProductRecord) []Chunk {
	text := rec.CardText()

	if len(text) <= c.chunkSize {
		return []Chunk{{RecordID: rec.ID, Seq: 0, Text: text}}
	}

	var chunks []Chunk
	step := c.chunkSize - c.overlap
	for start := 0; start < len(text); start += step {
		end := start + c.chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, Chunk{
			RecordID: rec.ID,
			Seq:      len(chunks),
			Text:     text[start:end],
		})
		if end == len(text) {
			break
		}
	}
	return chunks
}

// ChunkAll chunks every record of the snapshot in ascending-id order.
func (c *Chunker) ChunkAll(snap *catalog.Snapshot) []Chunk {
	var out []Chunk
	for _, rec := range snap.Records() {
		out = append(out, c.Chunk(rec)...)
	}
	return out
}
