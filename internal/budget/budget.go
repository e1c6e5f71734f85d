// Package budget provides token budget estimation for the retrieval
// context and the synthesizer prompt. Because the engine supports
// multiple LLM backends with different tokenizers, this package uses a
// conservative character-based heuristic: 1 token ≈ 4 characters. This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and close enough
	// for Spanish catalog text; using 3 would be more aggressive but
	// risks overflowing context windows.
	charsPerToken = 4

	// DefaultContextTokens is the default retrieval context budget in
	// tokens. Conservative enough to fit within 8k-context models while
	// leaving room for the question, the prompt scaffolding, and the
	// answer. Override via the retrieval config section.
	DefaultContextTokens = 1500
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// Chars converts a token budget into the character budget the retriever
// packs against.
func Chars(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	return tokens * charsPerToken
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}
