package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wencm/recetona-go/internal/logging"
)

// NewRefreshCmd constructs the `recetona refresh` command, which runs the
// ingestion pipeline: load the catalog CSV, chunk every record, embed
// chunks not already in the cache and rebuild the vector index.
func NewRefreshCmd() *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Load the catalog and refresh the embedding cache and index",
		Long: `Run the catalog ingestion pipeline.

Every catalog record is chunked deterministically and embedded; chunks
whose content has not changed since the last refresh are served from the
durable embedding cache, so a warm refresh makes no provider calls.

Examples:
  recetona refresh
  recetona refresh --csv ./data/mercadona_products.csv
  EMBEDDING_PROVIDER=openai recetona refresh`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			st, err := buildStack(log, csvPath)
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			defer st.Close()

			stats, err := st.Pipeline.Refresh(ctx, func(msg string) {
				fmt.Println(msg)
			})
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}

			fmt.Printf("refresh complete in %s\n", stats.Duration.Round(10*time.Millisecond))
			fmt.Printf("  records loaded:  %d (skipped %d)\n", stats.RecordsLoaded, stats.RecordsSkipped)
			fmt.Printf("  chunks indexed:  %d\n", stats.Chunks)
			fmt.Printf("  cache hits:      %d\n", stats.CacheHits)
			fmt.Printf("  cache misses:    %d (embedded now)\n", stats.CacheMisses)
			if stale := st.Cache.StaleCount(); stale > 0 {
				fmt.Printf("  stale entries:   %d (other model, kept on disk)\n", stale)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the catalog CSV (default: $RECETONA_CATALOG_CSV or ./"+defaultCSVPath+")")

	return cmd
}
