package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/relayagent/agentd/internal/coordinator"
)

// mcpCmd exposes the Tool Coordinator's registry over the Model Context
// Protocol via stdio, additive to the HTTP/SSE transport (§4.C).
func mcpCmd() *cobra.Command {
	var repoRoot string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tool registry over MCP via stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			if repoRoot == "" {
				return fmt.Errorf("--repo-root is required")
			}

			reg := buildRegistry(nil)
			mcpSrv := coordinator.NewMCPServer(reg, func(ctx context.Context) (string, error) {
				return repoRoot, nil
			})
			return server.ServeStdio(mcpSrv)
		},
	}
	cmd.Flags().StringVar(&repoRoot, "repo-root", "", "repository root MCP tool calls are scoped to")
	return cmd
}
