// Package main provides the CLI entry point for the agent orchestration
// server: a duplex turn endpoint backed by Anthropic/OpenAI, a sandboxed
// file and process tool surface, and a Postgres or in-memory history store.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with its subcommands attached.
// Separated from main() so tests can exercise it without os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "nexus-orchestrator",
		Short:        "Agent orchestration server: turn endpoint, tool surface, history store",
		Version:      version + " (commit: " + commit + ")",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}
