package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino/callbacks"

	"github.com/wencm/recetona-go/internal/cache"
	"github.com/wencm/recetona-go/internal/catalog"
	"github.com/wencm/recetona-go/internal/chunker"
	"github.com/wencm/recetona-go/internal/embedder"
	"github.com/wencm/recetona-go/internal/ingestion"
	"github.com/wencm/recetona-go/internal/rag"
	"github.com/wencm/recetona-go/internal/synth"
	"github.com/wencm/recetona-go/internal/tracing"
)

// defaultCSVPath is the catalog dataset location when neither the flag
// nor RECETONA_CATALOG_CSV is set.
const defaultCSVPath = "mercadona_products.csv"

// stack bundles the retrieval components shared by every command that
// touches the catalog: store, embedding cache, vector index and the
// refresh pipeline wiring them together.
type stack struct {
	Catalog  *catalog.Store
	Cache    *cache.Store
	Embedder rag.Embedder
	Index    rag.Index
	Pipeline *ingestion.Pipeline
}

// Close releases the cache database and, for remote index backends, the
// index connection.
func (s *stack) Close() {
	if c, ok := s.Index.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	_ = s.Cache.Close()
}

// buildStack constructs the retrieval stack from the environment.
// csvPath overrides the dataset location when non-empty.
func buildStack(log *slog.Logger, csvPath string) (*stack, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	dbPath := os.Getenv("RECETONA_CACHE_DB")
	if dbPath == "" {
		dbPath, err = cache.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cache path: %w", err)
		}
	}

	cacheStore, err := cache.Open(&cache.Config{
		Path:    dbPath,
		ModelID: emb.ModelID(),
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache at %s: %w", dbPath, err)
	}

	index, err := buildIndex()
	if err != nil {
		cacheStore.Close()
		return nil, err
	}

	if csvPath == "" {
		csvPath = getEnvOrDefault("RECETONA_CATALOG_CSV", defaultCSVPath)
	}

	cat := catalog.NewStore()
	pipeline, err := ingestion.NewPipeline(cat, chunker.New(), cacheStore, emb, index, &ingestion.Config{
		CSVPath: csvPath,
		Logger:  log,
	})
	if err != nil {
		cacheStore.Close()
		return nil, err
	}

	return &stack{
		Catalog:  cat,
		Cache:    cacheStore,
		Embedder: emb,
		Index:    index,
		Pipeline: pipeline,
	}, nil
}

// buildIndex selects the vector index backend. INDEX_BACKEND=qdrant
// switches to the remote backend; the in-memory index is the default.
func buildIndex() (rag.Index, error) {
	switch backend := getEnvOrDefault("INDEX_BACKEND", "memory"); backend {
	case "memory":
		return rag.NewMemoryIndex(), nil
	case "qdrant":
		idx, err := rag.NewQdrantIndex(&rag.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "recetona-products"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown INDEX_BACKEND %q (expected memory or qdrant)", backend)
	}
}

// buildEngine constructs the question-answering engine over an already
// built stack: synthesizer and budgeted retriever around the given chat
// model.
func buildEngine(st *stack, chatModel synth.ChatModel, log *slog.Logger) (*synth.Engine, error) {
	synthesizer, err := synth.New(&synth.Config{
		Model:  chatModel,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	opts := []rag.RetrieverOption{
		rag.WithTopK(getEnvInt("RETRIEVAL_TOP_K", rag.DefaultTopK)),
		rag.WithPerRecordCap(getEnvInt("RETRIEVAL_PER_RECORD_CAP", rag.DefaultPerRecordCap)),
	}
	if floor := getEnvFloat32("RETRIEVAL_MIN_SCORE", 0); floor > 0 {
		opts = append(opts, rag.WithMinScore(floor))
	}
	retriever := rag.NewRetriever(st.Index, st.Embedder, opts...)

	return synth.NewEngine(retriever, synthesizer, getEnvInt("RETRIEVAL_CONTEXT_TOKENS", 0))
}

// setupTracing enables the Langfuse callback when its keys are present.
// The returned flush function is a no-op when tracing is disabled.
func setupTracing(log *slog.Logger) func() {
	handler, flush, ok := tracing.Setup()
	if !ok {
		log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("langfuse tracing enabled")
	return flush
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat32(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}
