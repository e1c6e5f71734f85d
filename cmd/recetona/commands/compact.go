package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wencm/recetona-go/internal/logging"
)

// NewCompactCmd constructs the `recetona compact` command, which deletes
// cache entries no longer referenced by the current chunk set. Compaction
// never runs implicitly; stale entries are otherwise kept so a model or
// chunking-policy rollback costs nothing.
func NewCompactCmd() *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Delete cache entries not referenced by the current catalog",
		Long: `Remove embedding cache entries whose fingerprints are not produced by
the current catalog, chunking policy and embedding model.

The live fingerprint set is computed by chunking the catalog CSV; no
provider calls are made.

Examples:
  recetona compact
  recetona compact --csv ./data/mercadona_products.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			st, err := buildStack(log, csvPath)
			if err != nil {
				return fmt.Errorf("compact: %w", err)
			}
			defer st.Close()

			// Chunk the catalog without embedding to learn which
			// fingerprints are live.
			if _, err := st.Pipeline.LoadOnly(); err != nil {
				return fmt.Errorf("compact: %w", err)
			}

			before := st.Cache.Len() + st.Cache.StaleCount()
			deleted, err := st.Cache.Compact(ctx, st.Pipeline.LiveFingerprints())
			if err != nil {
				return fmt.Errorf("compact: %w", err)
			}

			fmt.Printf("compacted cache: %d entries deleted, %d kept\n", deleted, before-deleted)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the catalog CSV (default: $RECETONA_CATALOG_CSV or ./"+defaultCSVPath+")")

	return cmd
}
