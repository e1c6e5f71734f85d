package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wencm/recetona-go/internal/errs"
)

func ollamaTestServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func Test_Ollama_EmbedBatch(t *testing.T) {
	t.Parallel()
	srv := ollamaTestServer(t, http.StatusOK, ollamaEmbedResponse{
		Embeddings: [][]float32{{1, 2}, {3, 4}},
	})
	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})

	got, err := e.Embed(context.Background(), []string{"uno", "dos"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(got) != 2 || got[0][0] != 1 || got[1][1] != 4 {
		t.Fatalf("unexpected embeddings: %v", got)
	}
}

func Test_Ollama_RateLimitIsTransient(t *testing.T) {
	t.Parallel()
	srv := ollamaTestServer(t, http.StatusTooManyRequests, ollamaEmbedResponse{Error: "slow down"})
	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})

	_, err := e.Embed(context.Background(), []string{"uno"})
	if !errs.IsTransient(err) {
		t.Fatalf("want transient error for 429, got %v", err)
	}
}

func Test_Ollama_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()
	srv := ollamaTestServer(t, http.StatusBadGateway, ollamaEmbedResponse{})
	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})

	_, err := e.Embed(context.Background(), []string{"uno"})
	if !errs.IsTransient(err) {
		t.Fatalf("want transient error for 502, got %v", err)
	}
}

func Test_Ollama_BadRequestIsPermanent(t *testing.T) {
	t.Parallel()
	srv := ollamaTestServer(t, http.StatusNotFound, ollamaEmbedResponse{Error: "model not found"})
	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nope"})

	_, err := e.Embed(context.Background(), []string{"uno"})
	if errs.IsTransient(err) {
		t.Fatalf("404 must not be retried, got %v", err)
	}
}

func Test_Ollama_ConnectionRefusedIsTransient(t *testing.T) {
	t.Parallel()
	e := NewOllamaEmbedder(&OllamaConfig{Host: "http://127.0.0.1:1", Model: "nomic-embed-text"})

	_, err := e.Embed(context.Background(), []string{"uno"})
	if !errs.IsTransient(err) {
		t.Fatalf("want transient error for a refused connection, got %v", err)
	}
}

func Test_OpenAI_UnauthorizedIsPermanent(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	t.Cleanup(srv.Close)
	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "bad", Model: "text-embedding-3-small"})

	_, err := e.Embed(context.Background(), []string{"uno"})
	if errs.IsTransient(err) {
		t.Fatalf("401 must not be retried, got %v", err)
	}
}

func Test_OpenAI_ReordersByIndex(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[2],"index":1},{"embedding":[1],"index":0}]}`))
	}))
	t.Cleanup(srv.Close)
	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "text-embedding-3-small"})

	got, err := e.Embed(context.Background(), []string{"uno", "dos"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Fatalf("responses not reordered by index: %v", got)
	}
}

func Test_ModelID_IncludesBackendAndModel(t *testing.T) {
	t.Parallel()
	ollama := NewOllamaEmbedder(&OllamaConfig{Host: "http://localhost:11434", Model: "nomic-embed-text"})
	if got := ollama.ModelID(); got != "ollama/nomic-embed-text" {
		t.Errorf("ollama model id: %q", got)
	}

	openai := NewOpenAIEmbedder(&OpenAIConfig{Model: "text-embedding-3-small", Dimensions: 1536})
	if got := openai.ModelID(); got != "openai/text-embedding-3-small@1536" {
		t.Errorf("openai model id: %q", got)
	}

	azure := NewOpenAIEmbedder(&OpenAIConfig{Model: "text-embedding-3-small", Azure: true})
	if got := azure.ModelID(); got != "azure/text-embedding-3-small" {
		t.Errorf("azure model id: %q", got)
	}
}

func Test_LooksLikeChatModel(t *testing.T) {
	t.Parallel()
	for _, m := range []string{"gpt-4o", "llama3.1:8b", "Mistral-7B"} {
		if !looksLikeChatModel(m) {
			t.Errorf("%q should be flagged as a chat model", m)
		}
	}
	for _, m := range []string{"nomic-embed-text", "text-embedding-3-small"} {
		if looksLikeChatModel(m) {
			t.Errorf("%q should not be flagged", m)
		}
	}
}
