// Command recetona answers recipe and shopping questions against the
// Mercadona product catalog. It provides a CLI (via Cobra), an HTTP API
// and an MCP server for agent hosts.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/wencm/recetona-go/cmd/recetona/commands"
)

func main() {
	// Load .env once at startup. Missing file is fine; explicit env
	// vars always win over .env values.
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
