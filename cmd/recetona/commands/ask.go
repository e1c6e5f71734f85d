package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wencm/recetona-go/internal/logging"
	"github.com/wencm/recetona-go/internal/provider"
)

// NewAskCmd constructs the `recetona ask` command, which answers a single
// question from the terminal.
func NewAskCmd() *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a recipe or shopping question against the catalog",
		Long: `Ask a natural-language question about recipes, meal planning or cost.

The answer is grounded exclusively on the product catalog: it includes a
recipe, a shopping list of catalog products and an estimated total cost.

Examples:
  recetona ask "¿qué ceno hoy por menos de 5 euros?"
  recetona ask "una cena vegetariana para cuatro personas"
  MODEL_PROVIDER=openai recetona ask "postre rápido con chocolate"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			flush := setupTracing(log)
			defer flush()

			st, err := buildStack(log, csvPath)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer st.Close()

			// Populate the catalog and index; warm cache makes this a
			// local-only operation.
			if _, err := st.Pipeline.Refresh(ctx, nil); err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			engine, err := buildEngine(st, chatModel, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			answer, err := engine.Answer(ctx, args[0])
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(answer)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the catalog CSV (default: $RECETONA_CATALOG_CSV or ./"+defaultCSVPath+")")

	return cmd
}
