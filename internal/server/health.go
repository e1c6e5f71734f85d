package server

import (
	"context"
	"net/http"
	"time"

	"github.com/wencm/recetona-go/internal/logging"
)

const probeTimeout = 5 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
	Name() string
}

type readyCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true}
	for _, p := range s.cfg.Pingers {
		check := readyCheck{Name: p.Name(), OK: true}
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		if err := p.Ping(ctx); err != nil {
			check.OK = false
			check.Error = err.Error()
			resp.Ready = false
			log.Warn("readiness probe failed", "check", p.Name(), "error", err)
		}
		cancel()
		resp.Checks = append(resp.Checks, check)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
