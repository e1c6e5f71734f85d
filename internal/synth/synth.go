// Package synth turns a user question plus retrieved catalog context into
// the final answer via an LLM chat model. The prompt contract is strict:
// the model may only use the supplied product facts, and an empty context
// short-circuits to a fixed "no data" answer without ever calling the
// provider.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/wencm/recetona-go/internal/budget"
	"github.com/wencm/recetona-go/internal/errs"
)

// systemPrompt is the grounding contract for the recipe assistant. The
// response format mirrors the three-block answer the catalog assistant
// produces: recipe, shopping list, estimated cost.
const systemPrompt = `Eres RecetONA, un asistente de recetas basado en el catálogo de productos de Mercadona.

Reglas estrictas:
- Responde SIEMPRE en español.
- Usa ÚNICAMENTE los productos del contexto de catálogo que se te proporciona. No inventes productos, precios ni ingredientes.
- Si el contexto no contiene productos suficientes para la pregunta, dilo claramente en lugar de inventar.

Formato de respuesta:
1. Receta: nombre y pasos de preparación.
2. Lista de la compra: productos del catálogo con su precio por unidad.
3. Coste estimado: suma aproximada en EUR de los productos usados.`

// NoDataAnswer is returned when retrieval produced no catalog context.
// It is a fixed string so surfaces can rely on it and no provider call is
// wasted on a question we cannot ground.
const NoDataAnswer = "No he encontrado productos del catálogo relacionados con tu pregunta. " +
	"Prueba a reformularla o usa la búsqueda de productos."

const (
	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 120 * time.Second

	// defaultMaxRetries bounds the backoff loop for transient failures.
	defaultMaxRetries = 3
)

// ChatModel is the minimal chat surface the synthesizer needs. The
// provider factory's model.ToolCallingChatModel satisfies it; tests
// supply a fake.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Config holds the dependencies and tuning for a Synthesizer.
type Config struct {
	// Model is the LLM backend constructed by the provider factory.
	Model ChatModel

	// Timeout bounds each individual provider call. Defaults to
	// DefaultTimeout if zero.
	Timeout time.Duration

	// MaxRetries bounds retries of transient provider failures.
	// Defaults to 3 if zero.
	MaxRetries int

	// InitialBackoff is the first retry wait. Defaults to 500ms; tests
	// shrink it to keep the retry path fast.
	InitialBackoff time.Duration

	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger
}

// Synthesizer produces grounded answers from retrieved catalog context.
type Synthesizer struct {
	model          ChatModel
	timeout        time.Duration
	maxRetries     int
	initialBackoff time.Duration
	log            *slog.Logger
}

// New constructs a Synthesizer from cfg.
func New(cfg *Config) (*Synthesizer, error) {
	if cfg == nil || cfg.Model == nil {
		return nil, fmt.Errorf("synth: Model must not be nil")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	return &Synthesizer{
		model:          cfg.Model,
		timeout:        timeout,
		maxRetries:     retries,
		initialBackoff: initial,
		log:            log,
	}, nil
}

// Synthesize answers question from contextText. An empty context returns
// NoDataAnswer immediately. Transient provider failures are retried with
// exponential backoff up to the configured limit; permanent failures
// (auth, malformed request) fail immediately. A partial or fabricated
// answer is never returned: either the provider succeeds or the caller
// gets an error.
func (s *Synthesizer) Synthesize(ctx context.Context, question, contextText string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errs.Validation("synth: question is empty")
	}
	if strings.TrimSpace(contextText) == "" {
		return NoDataAnswer, nil
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.SystemMessage("Contexto de catálogo:\n\n" + contextText),
		schema.UserMessage(question),
	}
	s.log.Debug("synth: generating answer",
		slog.Int("estimated_prompt_tokens", budget.EstimateMessages(messages)),
	)

	var answer string
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.model.Generate(callCtx, messages)
		if err != nil {
			if errs.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			return backoff.Permanent(errs.Permanent(fmt.Errorf("synth: provider returned an empty answer")))
		}
		answer = resp.Content
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.initialBackoff
	policy := backoff.WithContext(
		backoff.WithMaxRetries(expo, uint64(s.maxRetries)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		s.log.Warn("synth: transient provider failure, retrying",
			slog.Any("error", err),
			slog.Duration("backoff", wait),
		)
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return "", fmt.Errorf("synth: generate: %w", err)
	}
	return answer, nil
}
