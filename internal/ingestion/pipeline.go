// Package ingestion implements the catalog refresh pipeline.
// It loads the product CSV, chunks every record's product card, resolves
// each chunk's embedding through the durable cache (computing only the
// misses), rebuilds the vector index, and atomically swaps the catalog
// snapshot. This pipeline is invoked by the `recetona refresh` CLI
// command and at server startup.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wencm/recetona-go/internal/cache"
	"github.com/wencm/recetona-go/internal/catalog"
	"github.com/wencm/recetona-go/internal/chunker"
	"github.com/wencm/recetona-go/internal/rag"
)

// Config holds the configuration for the refresh pipeline.
type Config struct {
	// CSVPath is the product catalog CSV file to load.
	CSVPath string

	// Workers is the number of concurrent embedding workers.
	// Defaults to GOMAXPROCS if zero. Only cache misses reach the
	// provider, so a warm cache refresh never fans out network calls.
	Workers int

	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger
}

// Pipeline orchestrates load → chunk → embed-or-hit → index → swap.
type Pipeline struct {
	catalog  *catalog.Store
	chunker  *chunker.Chunker
	cache    *cache.Store
	embedder rag.Embedder
	index    rag.Index
	cfg      *Config
	log      *slog.Logger
}

// Stats summarizes one refresh run.
type Stats struct {
	// RecordsLoaded is the number of valid catalog records.
	RecordsLoaded int

	// RecordsSkipped is the number of malformed rows dropped by the loader.
	RecordsSkipped int

	// Chunks is the total number of retrieval chunks produced.
	Chunks int

	// CacheHits is the number of chunks whose embedding was already cached.
	CacheHits int

	// CacheMisses is the number of chunks that required a provider call.
	CacheMisses int

	// Duration is the wall-clock time of the whole refresh.
	Duration time.Duration
}

// NewPipeline constructs a Pipeline from the provided dependencies.
func NewPipeline(cat *catalog.Store, ch *chunker.Chunker, cacheStore *cache.Store, embedder rag.Embedder, index rag.Index, cfg *Config) (*Pipeline, error) {
	if cat == nil {
		return nil, fmt.Errorf("ingestion: catalog store must not be nil")
	}
	if ch == nil {
		ch = chunker.New()
	}
	if cacheStore == nil {
		return nil, fmt.Errorf("ingestion: cache must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.CSVPath == "" {
		return nil, fmt.Errorf("ingestion: CSVPath is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		catalog:  cat,
		chunker:  ch,
		cache:    cacheStore,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		log:      log,
	}, nil
}

// Refresh runs the full pipeline. The catalog snapshot is only swapped
// after the index rebuild succeeds, so queries keep serving the previous
// catalog if anything fails partway. Progress is reported via the
// optional progress callback.
func (p *Pipeline) Refresh(ctx context.Context, progress func(msg string)) (*Stats, error) {
	if progress == nil {
		progress = func(string) {}
	}
	start := time.Now()
	stats := &Stats{}

	progress(fmt.Sprintf("loading catalog from %s", p.cfg.CSVPath))
	loaded, err := catalog.Load(p.cfg.CSVPath, p.log)
	if err != nil {
		return nil, fmt.Errorf("ingestion: load catalog: %w", err)
	}
	stats.RecordsLoaded = loaded.Loaded
	stats.RecordsSkipped = loaded.Skipped

	chunks := p.chunker.ChunkAll(loaded.Snapshot)
	stats.Chunks = len(chunks)
	progress(fmt.Sprintf("chunked %d records into %d chunks", loaded.Loaded, len(chunks)))

	entries := make([]rag.IndexEntry, len(chunks))
	var hits, misses atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, ch := range chunks {
		g.Go(func() error {
			fp := cache.NewFingerprint(ch.Text, chunker.PolicyVersion, p.embedder.ModelID())
			if _, ok := p.cache.Get(fp); ok {
				hits.Add(1)
			} else {
				misses.Add(1)
			}
			entry, err := p.cache.GetOrCompute(gctx, fp, ch.Text, p.embedder)
			if err != nil {
				return fmt.Errorf("ingestion: embed chunk %s/%d: %w", ch.RecordID, ch.Seq, err)
			}
			entries[i] = rag.IndexEntry{
				Fingerprint: string(fp),
				Vector:      entry.Vector,
				Chunk:       ch,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats.CacheHits = int(hits.Load())
	stats.CacheMisses = int(misses.Load())
	progress(fmt.Sprintf("embeddings resolved: %d cached, %d computed", stats.CacheHits, stats.CacheMisses))

	if err := p.index.Rebuild(ctx, entries); err != nil {
		return nil, fmt.Errorf("ingestion: rebuild index: %w", err)
	}

	p.catalog.Swap(loaded.Snapshot)
	stats.Duration = time.Since(start)

	p.log.Info("ingestion: refresh complete",
		slog.Int("records", stats.RecordsLoaded),
		slog.Int("skipped", stats.RecordsSkipped),
		slog.Int("chunks", stats.Chunks),
		slog.Int("cache_hits", stats.CacheHits),
		slog.Int("cache_misses", stats.CacheMisses),
		slog.Duration("duration", stats.Duration),
	)
	progress(fmt.Sprintf("refresh complete in %s", stats.Duration.Round(time.Millisecond)))
	return stats, nil
}

// LoadOnly loads the catalog CSV and publishes the snapshot without
// touching the embedding cache or the index. Compaction uses it to learn
// the live fingerprint set without making provider calls.
func (p *Pipeline) LoadOnly() (*catalog.LoadResult, error) {
	loaded, err := catalog.Load(p.cfg.CSVPath, p.log)
	if err != nil {
		return nil, fmt.Errorf("ingestion: load catalog: %w", err)
	}
	p.catalog.Swap(loaded.Snapshot)
	return loaded, nil
}

// LiveFingerprints returns the fingerprint set of the current catalog
// under the current chunking policy and embedding model, for cache
// compaction.
func (p *Pipeline) LiveFingerprints() map[cache.Fingerprint]bool {
	snap := p.catalog.Snapshot()
	live := make(map[cache.Fingerprint]bool)
	for _, ch := range p.chunker.ChunkAll(snap) {
		live[cache.NewFingerprint(ch.Text, chunker.PolicyVersion, p.embedder.ModelID())] = true
	}
	return live
}
