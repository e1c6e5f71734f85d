package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// cacheMetrics holds the Prometheus metrics owned by the embedding cache.
// One instance is created per Store so tests can inject a fresh
// prometheus.Registry without polluting the default one.
type cacheMetrics struct {
	// hits counts lookups served from the in-memory active set.
	hits prometheus.Counter

	// misses counts lookups that required a provider computation.
	misses prometheus.Counter

	// computes counts embedding-provider calls actually issued,
	// partitioned by outcome: "ok" or "error". Under single-flight this
	// is at most one per missed fingerprint regardless of caller count.
	computes *prometheus.CounterVec

	// corruptDropped counts on-disk entries discarded at load time
	// because they failed integrity checks.
	corruptDropped prometheus.Counter

	// activeEntries is the size of the in-memory active set.
	activeEntries prometheus.Gauge
}

// newCacheMetrics registers all cache metrics against reg. promauto.With(reg)
// registers into the provided registry rather than the global default so
// unit tests stay hermetic.
func newCacheMetrics(reg prometheus.Registerer) *cacheMetrics {
	factory := promauto.With(reg)

	return &cacheMetrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recetona",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total embedding lookups served from the in-memory cache.",
		}),

		misses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recetona",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total embedding lookups that missed the cache.",
		}),

		computes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recetona",
			Subsystem: "cache",
			Name:      "computes_total",
			Help:      "Total embedding-provider calls issued, partitioned by outcome.",
		}, []string{"outcome"}),

		corruptDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recetona",
			Subsystem: "cache",
			Name:      "corrupt_dropped_total",
			Help:      "Total on-disk entries discarded at load time after failing integrity checks.",
		}),

		activeEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "recetona",
			Subsystem: "cache",
			Name:      "active_entries",
			Help:      "Number of embedding entries in the in-memory active set.",
		}),
	}
}
