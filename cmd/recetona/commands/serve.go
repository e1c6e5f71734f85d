package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wencm/recetona-go/internal/logging"
	"github.com/wencm/recetona-go/internal/provider"
	"github.com/wencm/recetona-go/internal/server"
)

// NewServeCmd constructs the `recetona serve` command, which starts the
// HTTP API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var csvPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the RecetONA HTTP API server",
		Long: `Start the HTTP server on localhost.

The server exposes POST /api/chat for one-shot recipe questions plus
health, readiness and Prometheus metrics endpoints. The catalog is
ingested at startup; with a warm embedding cache this makes no provider
calls.

Examples:
  recetona serve
  recetona serve --port 9090
  MODEL_PROVIDER=openai recetona serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Flags win over SERVER_HOST/SERVER_PORT, which in turn
			// win over the defaults.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("SERVER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("SERVER_PORT", port)
			}

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", "provider", os.Getenv("MODEL_PROVIDER"))

			flush := setupTracing(log)
			defer flush()

			st, err := buildStack(log, csvPath)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer st.Close()

			stats, err := st.Pipeline.Refresh(ctx, nil)
			if err != nil {
				return fmt.Errorf("serve: initial refresh: %w", err)
			}
			log.Info("catalog ready",
				"records", stats.RecordsLoaded,
				"chunks", stats.Chunks,
				"cache_hits", stats.CacheHits,
				"cache_misses", stats.CacheMisses,
			)

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", "provider", string(providerCfg.Backend))

			engine, err := buildEngine(st, chatModel, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			srv, err := server.New(engine, server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				APIKey: os.Getenv("RECETONA_API_KEY"),
				RateLimit: float64(getEnvInt("SERVER_RATE_LIMIT", 0)),
				RateBurst: getEnvInt("SERVER_RATE_BURST", 0),
				Pingers: []server.Pinger{
					&server.CachePinger{Store: st.Cache},
					&server.IndexPinger{Index: st.Index},
					&server.EmbedderPinger{Embedder: st.Embedder},
					&server.LLMPinger{Model: chatModel},
				},
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the catalog CSV (default: $RECETONA_CATALOG_CSV or ./"+defaultCSVPath+")")

	return cmd
}
