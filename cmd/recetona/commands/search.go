package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wencm/recetona-go/internal/catalog"
	"github.com/wencm/recetona-go/internal/logging"
)

// NewSearchCmd constructs the `recetona search` command, a keyword search
// over the catalog from the terminal. It only needs the CSV, never the
// embedder or the model provider.
func NewSearchCmd() *cobra.Command {
	var csvPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the product catalog by keyword",
		Long: `Search catalog products by name, category or ingredient.

Examples:
  recetona search "leche entera"
  recetona search --limit 5 chocolate`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			if csvPath == "" {
				csvPath = getEnvOrDefault("RECETONA_CATALOG_CSV", defaultCSVPath)
			}
			loaded, err := catalog.Load(csvPath, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			matches := loaded.Snapshot.Search(args[0], limit)
			if len(matches) == 0 {
				fmt.Println("no products matched")
				return nil
			}

			for _, m := range matches {
				r := m.Record
				fmt.Printf("%-8s %-50s %8.2f EUR  (score %.0f)\n", r.ID, truncate(r.Name, 50), r.PriceUnit, m.Score)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the catalog CSV (default: $RECETONA_CATALOG_CSV or ./"+defaultCSVPath+")")
	cmd.Flags().IntVarP(&limit, "limit", "n", 8, "Maximum number of results (1-25)")

	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
