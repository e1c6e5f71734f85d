package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/wencm/recetona-go/internal/logging"
)

// authMiddleware enforces bearer-token auth on /api routes when an API
// key is configured. Health, readiness and metrics stay open so probes
// and scrapers work without credentials.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.cfg.APIKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api/health" || r.URL.Path == "/api/ready" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="recetona"`)
			writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		// Never log the presented token.
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIKey)) != 1 {
			logging.FromContext(r.Context()).Warn("rejected request with invalid api key")
			w.Header().Set("WWW-Authenticate", `Bearer realm="recetona", error="invalid_token"`)
			writeJSONError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}
