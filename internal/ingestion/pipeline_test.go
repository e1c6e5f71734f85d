package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wencm/recetona-go/internal/cache"
	"github.com/wencm/recetona-go/internal/catalog"
	"github.com/wencm/recetona-go/internal/chunker"
	"github.com/wencm/recetona-go/internal/rag"
)

const testCSV = `product_id,product_name,price_unit,unit_size,size_format,category,subcategory,subsubcategory,ingredientes
1001,Leche entera,1.05,1,L,Lácteos,Leche,Leche entera,leche de vaca
1002,Pan de molde,1.35,460,g,Panadería,Pan,Pan de molde,"harina de trigo, agua, levadura"
bad-row,,,x,,,,,
1003,Huevos camperos,2.50,12,ud,Huevos,Huevos frescos,,huevo campero
`

type countingEmbedder struct {
	calls atomic.Int64
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, txt := range texts {
		out[i] = []float32{float32(len(txt)), 1}
	}
	return out, nil
}

func (e *countingEmbedder) ModelID() string { return "test-model" }

func writeTestCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(path, []byte(testCSV), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func newTestPipeline(t *testing.T, csvPath, cachePath string, emb rag.Embedder) (*Pipeline, *catalog.Store, rag.Index) {
	t.Helper()
	cacheStore, err := cache.Open(&cache.Config{
		Path:       cachePath,
		ModelID:    emb.ModelID(),
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = cacheStore.Close() })

	cat := catalog.NewStore()
	idx := rag.NewMemoryIndex()
	p, err := NewPipeline(cat, chunker.New(), cacheStore, emb, idx, &Config{
		CSVPath: csvPath,
		Workers: 4,
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, cat, idx
}

func Test_Refresh_LoadsChunksIndexesAndSwaps(t *testing.T) {
	t.Parallel()
	emb := &countingEmbedder{}
	p, cat, idx := newTestPipeline(t, writeTestCSV(t), filepath.Join(t.TempDir(), "cache.db"), emb)

	stats, err := p.Refresh(context.Background(), nil)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if stats.RecordsLoaded != 3 {
		t.Errorf("records loaded: want 3, got %d", stats.RecordsLoaded)
	}
	if stats.RecordsSkipped != 1 {
		t.Errorf("records skipped: want 1, got %d", stats.RecordsSkipped)
	}
	if stats.Chunks < 3 {
		t.Errorf("want at least one chunk per record, got %d", stats.Chunks)
	}
	if stats.CacheMisses != stats.Chunks || stats.CacheHits != 0 {
		t.Errorf("cold refresh: want all misses, got %d hits / %d misses", stats.CacheHits, stats.CacheMisses)
	}
	if idx.Len() != stats.Chunks {
		t.Errorf("index: want %d entries, got %d", stats.Chunks, idx.Len())
	}
	if cat.Snapshot().Len() != 3 {
		t.Errorf("catalog snapshot: want 3 records, got %d", cat.Snapshot().Len())
	}
	if _, err := cat.Snapshot().Fetch("1001"); err != nil {
		t.Errorf("fetch after swap: %v", err)
	}
}

func Test_Refresh_SecondRunIsAllHits(t *testing.T) {
	t.Parallel()
	emb := &countingEmbedder{}
	p, _, _ := newTestPipeline(t, writeTestCSV(t), filepath.Join(t.TempDir(), "cache.db"), emb)

	first, err := p.Refresh(context.Background(), nil)
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	callsAfterFirst := emb.calls.Load()

	second, err := p.Refresh(context.Background(), nil)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if second.CacheHits != first.Chunks || second.CacheMisses != 0 {
		t.Errorf("warm refresh: want all hits, got %d hits / %d misses", second.CacheHits, second.CacheMisses)
	}
	if emb.calls.Load() != callsAfterFirst {
		t.Errorf("warm refresh must not call the provider: %d calls before, %d after",
			callsAfterFirst, emb.calls.Load())
	}
}

func Test_Refresh_PersistedCacheSurvivesNewPipeline(t *testing.T) {
	t.Parallel()
	csvPath := writeTestCSV(t)
	cachePath := filepath.Join(t.TempDir(), "cache.db")

	emb1 := &countingEmbedder{}
	p1, _, _ := newTestPipeline(t, csvPath, cachePath, emb1)
	if _, err := p1.Refresh(context.Background(), nil); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	// A fresh pipeline over the same cache file recomputes nothing.
	emb2 := &countingEmbedder{}
	p2, _, _ := newTestPipeline(t, csvPath, cachePath, emb2)
	stats, err := p2.Refresh(context.Background(), nil)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if stats.CacheMisses != 0 {
		t.Errorf("restart must reuse the durable cache, got %d misses", stats.CacheMisses)
	}
	if emb2.calls.Load() != 0 {
		t.Errorf("restart recomputed %d batches", emb2.calls.Load())
	}
}

func Test_LiveFingerprints_MatchChunkSet(t *testing.T) {
	t.Parallel()
	emb := &countingEmbedder{}
	p, _, _ := newTestPipeline(t, writeTestCSV(t), filepath.Join(t.TempDir(), "cache.db"), emb)

	stats, err := p.Refresh(context.Background(), nil)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	live := p.LiveFingerprints()
	if len(live) != stats.Chunks {
		t.Errorf("want %d live fingerprints, got %d", stats.Chunks, len(live))
	}
}
