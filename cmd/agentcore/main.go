// Package main provides the CLI entry point for the agentcore runtime.
//
// agentcore is a multi-channel agent gateway: it accepts messages over HTTP
// webhooks and WebSocket connections, classifies them into slash commands or
// natural-language turns, and drives the latter through a tool-calling
// reasoning loop backed by an LLM provider.
//
// # Basic Usage
//
// Start the server:
//
//	agentcore serve
//
// # Environment Variables
//
// Configuration is read entirely from the environment (see internal/config):
//
//   - AGENTCORE_HOST, AGENTCORE_PORT: listen address
//   - DATABASE_DRIVER, DATABASE_URL, DATABASE_MAX_CONNECTIONS: the persisted store
//   - HTTP_WEBHOOK_SECRET, HTTP_WEBHOOK_USER_ID: inbound webhook auth
//   - WEB_AUTH_TOKEN, WEB_AUTH_JWT_SECRET: websocket auth
//   - LLM_DEFAULT_PROVIDER, ANTHROPIC_API_KEY, OPENAI_API_KEY: reasoning provider
//   - AGENTCORE_POLICY_FILE: optional egress allowlist/credential policy file
//   - AGENTCORE_WORKSPACE_ROOT: optional sandbox root enabling the file tools
//   - AGENTCORE_TRACING_ENDPOINT: optional OTLP collector address; unset disables tracing
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentcore",
		Short: "agentcore - multi-channel AI agent gateway",
		Long: `agentcore connects webhook and WebSocket channels to an LLM provider
with tool execution, job tracking, and session management.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}
