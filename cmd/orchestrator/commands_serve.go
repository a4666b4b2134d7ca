package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the turn endpoint.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestration server",
		Long: `Start the orchestration server.

The server will:
1. Load configuration from the specified file (or defaults/environment only)
2. Open the history store (Postgres if a database URL is configured, in-memory otherwise)
3. Register the sandboxed file and process tools
4. Initialize the configured LLM provider
5. Start the WebSocket turn endpoint and its HTTP auxiliary routes

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with defaults, reading credentials from the environment
  nexus-orchestrator serve

  # Start with a config file
  nexus-orchestrator serve --config /etc/orchestrator/orchestrator.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file (optional)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
