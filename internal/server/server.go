// Package server exposes the recipe answer engine over HTTP: a one-shot
// chat endpoint plus health, readiness and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wencm/recetona-go/internal/errs"
	"github.com/wencm/recetona-go/internal/logging"
)

const (
	defaultHost            = "127.0.0.1"
	defaultPort            = 8080
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 5 * time.Minute
	defaultShutdownTimeout = 10 * time.Second
)

// New builds a Server around the answer engine.
func New(engine answerer, cfg Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("server: engine must not be nil")
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &Server{
		cfg:     cfg,
		engine:  engine,
		log:     log,
		metrics: newServerMetrics(reg),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", metricsHandler(reg))

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst)
	s.stopRL = stopRL

	var handler http.Handler = mux
	handler = s.authMiddleware(handler)
	handler = rl.middleware(handler)
	handler = s.requestLogger(handler)

	s.httpSrv = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Handler returns the server's root handler, middleware included.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	s.stopRL()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return <-errCh
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	start := time.Now()
	answer, err := s.engine.Answer(r.Context(), req.Message)
	s.metrics.chatDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("chat request failed", "error", err)
		switch {
		case errors.Is(err, errs.ErrValidation):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errs.IsTransient(err):
			s.metrics.chatErrors.Inc()
			writeJSONError(w, http.StatusServiceUnavailable, "model provider unavailable, try again")
		default:
			s.metrics.chatErrors.Inc()
			writeJSONError(w, http.StatusInternalServerError, "failed to answer question")
		}
		return
	}

	s.metrics.chatRequests.Inc()
	writeJSON(w, http.StatusOK, chatResponse{Answer: answer})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func metricsHandler(reg prometheus.Registerer) http.Handler {
	if g, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
