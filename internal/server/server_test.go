package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wencm/recetona-go/internal/errs"
)

// fakeEngine implements the answerer interface for tests.
type fakeEngine struct {
	answer string
	err    error
	calls  int
}

func (f *fakeEngine) Answer(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// fakePinger implements Pinger with a fixed outcome.
type fakePinger struct {
	name string
	err  error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }
func (f *fakePinger) Name() string               { return f.name }

func newTestServer(t *testing.T, engine answerer, cfg Config) *Server {
	t.Helper()
	cfg.Logger = slog.Default()
	cfg.Registerer = prometheus.NewRegistry()
	s, err := New(engine, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func postChat(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleChat_Success(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{answer: "Receta: tortilla de patatas"}
	s := newTestServer(t, engine, Config{})

	w := postChat(t, s, `{"message":"cena barata para dos"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != engine.answer {
		t.Errorf("expected answer %q, got %q", engine.answer, resp.Answer)
	}
	if engine.calls != 1 {
		t.Errorf("expected 1 engine call, got %d", engine.calls)
	}
}

func TestHandleChat_MissingMessage(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{answer: "unused"}
	s := newTestServer(t, engine, Config{})

	w := postChat(t, s, `{}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if engine.calls != 0 {
		t.Errorf("engine must not be called on validation failure, got %d calls", engine.calls)
	}
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeEngine{}, Config{})

	w := postChat(t, s, `not-json`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_TransientProviderError(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{err: errs.Transient(fmt.Errorf("connection refused"))}
	s := newTestServer(t, engine, Config{})

	w := postChat(t, s, `{"message":"hola"}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for transient provider failure, got %d", w.Code)
	}
}

func TestHandleChat_InternalError(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{err: fmt.Errorf("boom")}
	s := newTestServer(t, engine, Config{})

	w := postChat(t, s, `{"message":"hola"}`)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if strings.Contains(resp.Error, "boom") {
		t.Errorf("internal error details must not leak to the client: %q", resp.Error)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeEngine{answer: "ok"}, Config{APIKey: "secret"})

	w := postChat(t, s, `{"message":"hola"}`)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); !strings.Contains(got, "Bearer") {
		t.Errorf("expected WWW-Authenticate header, got %q", got)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeEngine{answer: "ok"}, Config{APIKey: "secret"})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hola"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}
}

func TestAuth_ValidToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeEngine{answer: "ok"}, Config{APIKey: "secret"})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hola"}`))
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with valid token, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuth_HealthStaysOpen(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeEngine{}, Config{APIKey: "secret"})

	for _, path := range []string{"/api/health", "/api/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code == http.StatusUnauthorized {
			t.Errorf("%s must not require auth", path)
		}
	}
}

func TestRateLimiter_Limits(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeEngine{answer: "ok"}, Config{RateLimit: 1, RateBurst: 2})

	var last int
	for range 5 {
		w := postChat(t, s, `{"message":"hola"}`)
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 after exhausting burst, got %d", last)
	}
}

func TestRateLimiter_DisabledByDefault(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeEngine{answer: "ok"}, Config{})

	for range 20 {
		if w := postChat(t, s, `{"message":"hola"}`); w.Code != http.StatusOK {
			t.Fatalf("expected 200 with limiting disabled, got %d", w.Code)
		}
	}
}

func TestHandleReady_AllHealthy(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeEngine{}, Config{
		Pingers: []Pinger{&fakePinger{name: "cache"}, &fakePinger{name: "index"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Ready || len(resp.Checks) != 2 {
		t.Errorf("expected ready with 2 checks, got %+v", resp)
	}
}

func TestHandleReady_FailingDependency(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeEngine{}, Config{
		Pingers: []Pinger{
			&fakePinger{name: "cache"},
			&fakePinger{name: "llm", err: fmt.Errorf("connection refused")},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Ready {
		t.Error("expected not ready")
	}
	for _, c := range resp.Checks {
		if c.Name == "llm" && c.OK {
			t.Error("expected llm check to fail")
		}
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeEngine{}, Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
