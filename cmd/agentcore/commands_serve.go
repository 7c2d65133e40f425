package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the gateway server.
// This is the only command for running agentcore in production: everything
// is configured through the environment (see internal/config), so there is
// no config-file flag to thread through.
func buildServeCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agentcore gateway server",
		Long: `Start the agentcore gateway server with all configured channels.

The server will:
1. Load configuration from the environment
2. Open the persisted store and start the background session/job sweep
3. Start the HTTP webhook and WebSocket channel adapters
4. Begin dispatching incoming messages to the reasoning loop

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start the server
  agentcore serve

  # Start with debug logging
  agentcore serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")
	return cmd
}
