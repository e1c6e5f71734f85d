package synth

import (
	"context"
	"fmt"

	"github.com/wencm/recetona-go/internal/budget"
	"github.com/wencm/recetona-go/internal/rag"
)

// Engine glues the retriever and the synthesizer into the single
// question-to-answer operation every surface (HTTP, MCP, CLI) exposes.
type Engine struct {
	retriever   *rag.Retriever
	synth       *Synthesizer
	budgetChars int
}

// NewEngine builds an Engine. contextTokens is the retrieval context
// budget; zero selects budget.DefaultContextTokens.
func NewEngine(retriever *rag.Retriever, s *Synthesizer, contextTokens int) (*Engine, error) {
	if retriever == nil {
		return nil, fmt.Errorf("synth: retriever must not be nil")
	}
	if s == nil {
		return nil, fmt.Errorf("synth: synthesizer must not be nil")
	}
	if contextTokens <= 0 {
		contextTokens = budget.DefaultContextTokens
	}
	return &Engine{
		retriever:   retriever,
		synth:       s,
		budgetChars: budget.Chars(contextTokens),
	}, nil
}

// Answer retrieves grounding context for question and synthesizes the
// final answer. Retrieval coming up empty is not an error: the fixed
// no-data answer is returned.
func (e *Engine) Answer(ctx context.Context, question string) (string, error) {
	selected, err := e.retriever.Retrieve(ctx, question, e.budgetChars)
	if err != nil {
		return "", fmt.Errorf("synth: retrieve context: %w", err)
	}
	return e.synth.Synthesize(ctx, question, rag.ContextText(selected))
}
