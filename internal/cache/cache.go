// Package cache implements the durable, content-addressed embedding cache.
// Entries are keyed by Fingerprint and stored in a local SQLite database;
// computation is guarded by a per-fingerprint single-flight group so a
// given fingerprint triggers at most one embedding-provider call no matter
// how many callers race for it, while distinct fingerprints proceed in
// parallel.
//
// Entries are never mutated in place. A policy or model change produces
// new fingerprints; superseded entries stay on disk for rollback until an
// explicit Compact.
package cache

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/wencm/recetona-go/internal/errs"
	"github.com/wencm/recetona-go/internal/rag"
)

// Entry is one cached embedding. Created on first computation for its
// fingerprint, read-shared thereafter, never mutated.
type Entry struct {
	// Fingerprint is the content-hash key this entry was computed under.
	Fingerprint Fingerprint

	// Vector is the embedding vector.
	Vector []float32

	// Dimensions is len(Vector), stored explicitly so on-disk integrity
	// can be verified independently of the blob length.
	Dimensions int

	// ModelID is the embedding model the vector was computed under.
	ModelID string

	// CreatedAt is when the entry was first computed.
	CreatedAt time.Time
}

// Config holds the settings for opening a Store.
type Config struct {
	// Path is the SQLite database file path.
	Path string

	// ModelID is the currently configured embedding model. On load,
	// entries computed under any other model are excluded from the
	// active set (but retained on disk for rollback).
	ModelID string

	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger

	// Registerer receives the cache metrics. Defaults to the global
	// Prometheus registerer; tests inject a fresh registry.
	Registerer prometheus.Registerer
}

// Store is the embedding cache. It is safe for concurrent use.
type Store struct {
	// db is the underlying SQLite connection pool (single writer).
	db *sql.DB

	// modelID is the configured embedding model identity.
	modelID string

	// group deduplicates concurrent computations per fingerprint.
	group singleflight.Group

	// mu guards active.
	mu sync.RWMutex

	// active maps fingerprint to entry for all entries valid under the
	// configured model. Reads never touch the database or the network.
	active map[Fingerprint]*Entry

	// stale counts on-disk entries excluded because of a model mismatch.
	stale int

	// log is the structured logger for load/corruption events.
	log *slog.Logger

	// metrics are the Prometheus counters for hit/miss/compute rates.
	metrics *cacheMetrics
}

// DefaultDBPath returns the default cache database path,
// ~/.recetona/embeddings.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cache: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".recetona")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cache: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "embeddings.db"), nil
}

// Open opens (or creates) the cache at cfg.Path, runs the schema
// migration, and loads the active entry set for cfg.ModelID into memory.
func Open(cfg *Config) (*Store, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("cache: Path is required")
	}
	if cfg.ModelID == "" {
		return nil, errs.Configuration("cache: embedding model id is empty")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := cfg.Path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", cfg.Path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:      db,
		modelID: cfg.ModelID,
		active:  make(map[Fingerprint]*Entry),
		log:     log,
		metrics: newCacheMetrics(reg),
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS embeddings (
    fingerprint  TEXT    PRIMARY KEY,
    model_id     TEXT    NOT NULL,
    dimensions   INTEGER NOT NULL,
    vector       BLOB    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_embeddings_model
    ON embeddings (model_id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("cache: migrate: %w", err)
	}
	return nil
}

// load reads every on-disk entry into the active set. Entries under a
// different model id are counted as stale and skipped (not deleted — they
// allow rolling the model back without recomputation). Entries that fail
// integrity checks are deleted and treated as misses; a corrupt row never
// aborts the load.
func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT fingerprint, model_id, dimensions, vector, created_at FROM embeddings`)
	if err != nil {
		return fmt.Errorf("cache: load: %w", err)
	}
	defer rows.Close()

	var corrupt []Fingerprint
	for rows.Next() {
		var (
			fp    string
			model string
			dims  int
			blob  []byte
			ts    int64
		)
		if err := rows.Scan(&fp, &model, &dims, &blob, &ts); err != nil {
			return fmt.Errorf("cache: load scan: %w", err)
		}

		if model != s.modelID {
			s.stale++
			continue
		}

		vec, err := decodeVector(blob, dims)
		if err != nil {
			s.log.Warn("cache: corrupt entry discarded",
				slog.String("fingerprint", fp),
				slog.Any("error", errs.Corruption("%v", err)),
			)
			corrupt = append(corrupt, Fingerprint(fp))
			continue
		}

		s.active[Fingerprint(fp)] = &Entry{
			Fingerprint: Fingerprint(fp),
			Vector:      vec,
			Dimensions:  dims,
			ModelID:     model,
			CreatedAt:   time.Unix(ts, 0),
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("cache: load rows: %w", err)
	}

	for _, fp := range corrupt {
		if _, err := s.db.Exec(`DELETE FROM embeddings WHERE fingerprint = ?`, string(fp)); err != nil {
			s.log.Warn("cache: failed to drop corrupt entry", slog.String("fingerprint", string(fp)), slog.Any("error", err))
		}
		s.metrics.corruptDropped.Inc()
	}
	s.metrics.activeEntries.Set(float64(len(s.active)))

	s.log.Info("cache: loaded",
		slog.Int("active", len(s.active)),
		slog.Int("stale_model", s.stale),
		slog.Int("corrupt", len(corrupt)),
		slog.String("model", s.modelID),
	)
	return nil
}

// Get returns the cached entry for fp, or ok=false on a miss. It is
// read-only and never blocks on an external call.
func (s *Store) Get(fp Fingerprint) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.active[fp]
	return e, ok
}

// GetOrCompute returns the cached entry for fp, computing and persisting
// it on a miss. Concurrent callers with the same fingerprint share a
// single provider call; callers with distinct fingerprints proceed in
// parallel. On provider failure nothing is stored and the error is
// returned to every waiting caller — entry creation is all-or-nothing.
func (s *Store) GetOrCompute(ctx context.Context, fp Fingerprint, chunkText string, embedder rag.Embedder) (*Entry, error) {
	if e, ok := s.Get(fp); ok {
		s.metrics.hits.Inc()
		return e, nil
	}
	s.metrics.misses.Inc()

	if embedder.ModelID() != s.modelID {
		return nil, errs.Configuration(
			"cache opened for model %q but embedder is %q — rebuild the cache or fix the configuration",
			s.modelID, embedder.ModelID())
	}

	v, err, _ := s.group.Do(string(fp), func() (any, error) {
		// Re-check under the flight: another caller may have completed
		// this fingerprint between our miss and acquiring the flight.
		if e, ok := s.Get(fp); ok {
			return e, nil
		}

		vectors, err := embedder.Embed(ctx, []string{chunkText})
		if err != nil {
			s.metrics.computes.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("cache: embedding %s: %w", shortFP(fp), err)
		}
		s.metrics.computes.WithLabelValues("ok").Inc()
		if len(vectors) != 1 || len(vectors[0]) == 0 {
			return nil, errs.Permanent(fmt.Errorf("cache: embedder returned %d vectors for one input", len(vectors)))
		}

		entry := &Entry{
			Fingerprint: fp,
			Vector:      vectors[0],
			Dimensions:  len(vectors[0]),
			ModelID:     s.modelID,
			CreatedAt:   time.Now(),
		}
		if err := s.persist(ctx, entry); err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.active[fp] = entry
		s.metrics.activeEntries.Set(float64(len(s.active)))
		s.mu.Unlock()

		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// persist writes entry as a single INSERT so an abrupt termination can
// never leave a half-written row.
func (s *Store) persist(ctx context.Context, e *Entry) error {
	const q = `INSERT OR REPLACE INTO embeddings (fingerprint, model_id, dimensions, vector, created_at)
VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		string(e.Fingerprint), e.ModelID, e.Dimensions, encodeVector(e.Vector), e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("cache: persist %s: %w", shortFP(e.Fingerprint), err)
	}
	return nil
}

// ActiveEntries returns a snapshot of all entries valid under the
// configured model, for index rebuilds.
func (s *Store) ActiveEntries() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.active))
	for _, e := range s.active {
		out = append(out, e)
	}
	return out
}

// Len returns the number of active entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// StaleCount returns the number of on-disk entries excluded at load time
// because they were computed under a different embedding model.
func (s *Store) StaleCount() int {
	return s.stale
}

// Compact deletes every on-disk entry whose fingerprint is not in live,
// including entries computed under superseded models. It is only invoked
// explicitly (the `recetona compact` command) — stale entries are
// otherwise retained for rollback and debugging.
func (s *Store) Compact(ctx context.Context, live map[Fingerprint]bool) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint FROM embeddings`)
	if err != nil {
		return 0, fmt.Errorf("cache: compact scan: %w", err)
	}
	var dead []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			rows.Close()
			return 0, fmt.Errorf("cache: compact scan row: %w", err)
		}
		if !live[Fingerprint(fp)] {
			dead = append(dead, fp)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("cache: compact rows: %w", err)
	}
	rows.Close()

	for _, fp := range dead {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE fingerprint = ?`, fp); err != nil {
			return 0, fmt.Errorf("cache: compact delete %s: %w", shortFP(Fingerprint(fp)), err)
		}
		s.mu.Lock()
		delete(s.active, Fingerprint(fp))
		s.mu.Unlock()
	}
	s.mu.RLock()
	s.metrics.activeEntries.Set(float64(len(s.active)))
	s.mu.RUnlock()
	return len(dead), nil
}

// Ping verifies the underlying database is reachable, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("cache: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("cache: close: %w", err)
	}
	return nil
}

// encodeVector serializes a float32 vector as a little-endian blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector deserializes a vector blob, verifying it against the
// declared dimensionality.
func decodeVector(blob []byte, dims int) ([]float32, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("declared dimensions %d", dims)
	}
	if len(blob) != 4*dims {
		return nil, fmt.Errorf("vector blob is %d bytes, want %d for %d dimensions", len(blob), 4*dims, dims)
	}
	v := make([]float32, dims)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}

// shortFP abbreviates a fingerprint for log and error messages.
func shortFP(fp Fingerprint) string {
	if len(fp) > 12 {
		return string(fp[:12])
	}
	return string(fp)
}
