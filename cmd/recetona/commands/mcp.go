package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wencm/recetona-go/internal/logging"
	"github.com/wencm/recetona-go/internal/mcpserver"
	"github.com/wencm/recetona-go/internal/provider"
	"github.com/wencm/recetona-go/internal/synth"
)

// NewMCPCmd constructs the `recetona mcp` command, which serves the
// catalog tools over the Model Context Protocol.
func NewMCPCmd() *cobra.Command {
	var httpAddr string
	var csvPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the RecetONA MCP server (stdio by default)",
		Long: `Serve the catalog over the Model Context Protocol.

Exposes three tools to MCP hosts: search (keyword product search),
fetch (full product record by id) and query_recipe (grounded recipe
answer). By default the server speaks stdio, for hosts that spawn it as
a subprocess; --http switches to streamable HTTP.

query_recipe needs a configured model provider; without one the search
and fetch tools still work.

Examples:
  recetona mcp
  recetona mcp --http 127.0.0.1:8765
  MODEL_PROVIDER=ollama recetona mcp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			flush := setupTracing(log)
			defer flush()

			st, err := buildStack(log, csvPath)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			defer st.Close()

			if _, err := st.Pipeline.Refresh(ctx, nil); err != nil {
				return fmt.Errorf("mcp: initial refresh: %w", err)
			}

			// The model provider is optional for the MCP surface:
			// search and fetch are catalog-only tools.
			var engine *synth.Engine
			if chatModel, err := provider.NewFromEnv(ctx); err != nil {
				log.Warn("model provider unavailable, query_recipe disabled", "error", err)
			} else if engine, err = buildEngine(st, chatModel, log); err != nil {
				return fmt.Errorf("mcp: %w", err)
			}

			var srv *mcpserver.Server
			if engine != nil {
				srv, err = mcpserver.New(st.Catalog, engine, log)
			} else {
				srv, err = mcpserver.New(st.Catalog, nil, log)
			}
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}

			if httpAddr != "" {
				return srv.RunHTTP(ctx, httpAddr)
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve MCP over streamable HTTP on this address instead of stdio")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the catalog CSV (default: $RECETONA_CATALOG_CSV or ./"+defaultCSVPath+")")

	return cmd
}
