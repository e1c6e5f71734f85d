package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint is the content-addressed cache key for a chunk: a hex SHA-256
// digest over the chunk text, the chunking policy version, and the
// embedding model identifier. Two chunks with the same fingerprint are
// interchangeable for caching purposes and are never recomputed.
type Fingerprint string

// NewFingerprint computes the fingerprint for chunkText under the given
// chunking policy version and embedding model. It is pure and stable
// across process restarts: the digest input is a fixed-layout encoding of
// the three components with NUL separators so no field can bleed into its
// neighbour.
func NewFingerprint(chunkText string, policyVersion int, modelID string) Fingerprint {
	h := sha256.Sum256(fmt.Appendf(nil, "v%d\x00%s\x00%s", policyVersion, modelID, chunkText))
	return Fingerprint(hex.EncodeToString(h[:]))
}
