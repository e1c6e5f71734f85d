package synth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/wencm/recetona-go/internal/errs"
)

// scriptedModel returns canned errors for the first N calls, then answers.
type scriptedModel struct {
	failures []error
	answer   string
	calls    int
	lastMsgs []*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.lastMsgs = input
	m.calls++
	if m.calls <= len(m.failures) {
		return nil, m.failures[m.calls-1]
	}
	return schema.AssistantMessage(m.answer, nil), nil
}

func newTestSynth(t *testing.T, m ChatModel) *Synthesizer {
	t.Helper()
	s, err := New(&Config{Model: m, Timeout: time.Second, InitialBackoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}
	return s
}

func Test_Synthesize_EmptyContextSkipsProvider(t *testing.T) {
	t.Parallel()
	m := &scriptedModel{answer: "should never be used"}
	s := newTestSynth(t, m)

	got, err := s.Synthesize(context.Background(), "¿qué ceno hoy?", "   ")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got != NoDataAnswer {
		t.Errorf("want the fixed no-data answer, got %q", got)
	}
	if m.calls != 0 {
		t.Errorf("empty context must not reach the provider, got %d calls", m.calls)
	}
}

func Test_Synthesize_GroundsOnContext(t *testing.T) {
	t.Parallel()
	m := &scriptedModel{answer: "Tortilla de patatas con productos del catálogo."}
	s := newTestSynth(t, m)

	ctx := "Producto: Patata\nPrecio unidad: 1.50 EUR"
	got, err := s.Synthesize(context.Background(), "receta de tortilla", ctx)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got != m.answer {
		t.Errorf("answer: got %q", got)
	}

	if len(m.lastMsgs) != 3 {
		t.Fatalf("want system+context+user messages, got %d", len(m.lastMsgs))
	}
	if m.lastMsgs[0].Role != schema.System {
		t.Errorf("first message must be the system prompt")
	}
	if !strings.Contains(m.lastMsgs[1].Content, "Patata") {
		t.Errorf("catalog context missing from prompt: %q", m.lastMsgs[1].Content)
	}
	if m.lastMsgs[2].Role != schema.User || m.lastMsgs[2].Content != "receta de tortilla" {
		t.Errorf("user message: %+v", m.lastMsgs[2])
	}
}

func Test_Synthesize_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	m := &scriptedModel{
		failures: []error{
			errs.Transient(errors.New("rate limited")),
			errs.Transient(errors.New("rate limited")),
		},
		answer: "receta",
	}
	s := newTestSynth(t, m)

	got, err := s.Synthesize(context.Background(), "pregunta", "contexto")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got != "receta" {
		t.Errorf("answer: %q", got)
	}
	if m.calls != 3 {
		t.Errorf("want 2 retries then success, got %d calls", m.calls)
	}
}

func Test_Synthesize_PermanentFailureIsImmediate(t *testing.T) {
	t.Parallel()
	m := &scriptedModel{
		failures: []error{errs.Permanent(errors.New("invalid api key"))},
		answer:   "never",
	}
	s := newTestSynth(t, m)

	_, err := s.Synthesize(context.Background(), "pregunta", "contexto")
	if !errors.Is(err, errs.ErrProviderPermanent) {
		t.Fatalf("want permanent provider error, got %v", err)
	}
	if m.calls != 1 {
		t.Errorf("permanent failures must not be retried, got %d calls", m.calls)
	}
}

func Test_Synthesize_EmptyQuestionRejected(t *testing.T) {
	t.Parallel()
	s := newTestSynth(t, &scriptedModel{answer: "x"})
	_, err := s.Synthesize(context.Background(), "  ", "contexto")
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func Test_Synthesize_EmptyProviderAnswerIsError(t *testing.T) {
	t.Parallel()
	s := newTestSynth(t, &scriptedModel{answer: "   "})
	_, err := s.Synthesize(context.Background(), "pregunta", "contexto")
	if !errors.Is(err, errs.ErrProviderPermanent) {
		t.Fatalf("blank answer must fail rather than return fabricated output, got %v", err)
	}
}
