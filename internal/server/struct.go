package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// answerer is the slice of the answer engine the HTTP handlers need.
// Tests inject a fake.
type answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Config holds the HTTP server settings.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	Pingers         []Pinger
	RateLimit       float64
	RateBurst       int
	// APIKey, when set, requires a matching bearer token on /api routes.
	APIKey string
	// Registerer receives the server metrics. Defaults to the global
	// prometheus registerer.
	Registerer prometheus.Registerer
}

// Server wraps the HTTP server for the chat API.
type Server struct {
	cfg     Config
	engine  answerer
	log     *slog.Logger
	httpSrv *http.Server
	metrics *serverMetrics
	stopRL  func()
}
