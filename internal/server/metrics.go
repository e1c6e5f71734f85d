package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serverMetrics struct {
	requests     *prometheus.CounterVec
	chatRequests prometheus.Counter
	chatErrors   prometheus.Counter
	chatDuration prometheus.Histogram
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)
	return &serverMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recetona",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by path and status class.",
		}, []string{"path", "status"}),
		chatRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recetona",
			Subsystem: "http",
			Name:      "chat_answers_total",
			Help:      "Successfully answered chat requests.",
		}),
		chatErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recetona",
			Subsystem: "http",
			Name:      "chat_errors_total",
			Help:      "Chat requests that failed after reaching the engine.",
		}),
		chatDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "recetona",
			Subsystem: "http",
			Name:      "chat_duration_seconds",
			Help:      "End-to-end chat request duration.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}
