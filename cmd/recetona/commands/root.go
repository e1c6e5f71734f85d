// Package commands defines all Cobra CLI commands for the recetona binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/wencm/recetona-go/internal/audit"
	"github.com/wencm/recetona-go/internal/config"
	"github.com/wencm/recetona-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "recetona",
		Short: "RecetONA — recipe and shopping answers over the Mercadona catalog",
		Long: `RecetONA answers natural-language recipe and cost questions against the
Mercadona product catalog.

It retrieves relevant catalog facts through a locally cached embedding
index and hands them, with your question, to an external language model.
Answers include a recipe, a shopping list of catalog products and an
estimated cost.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.recetona/config.yaml).
See 'recetona --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.recetona/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewSearchCmd(),
		NewRefreshCmd(),
		NewCompactCmd(),
		NewServeCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return root
}
