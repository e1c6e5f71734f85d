package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/wencm/recetona-go/internal/logging"
)

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// requestLogger attaches a request-scoped logger to the context and logs
// every request with its outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := newRequestID()
		log := s.log.With("request_id", reqID, "method", r.Method, "path", r.URL.Path)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		ctx := logging.WithLogger(r.Context(), log)
		next.ServeHTTP(rw, r.WithContext(ctx))

		log.Info("http request",
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
		)
		s.metrics.requests.WithLabelValues(r.URL.Path, httpStatusClass(rw.status)).Inc()
	})
}

func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

func httpStatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
