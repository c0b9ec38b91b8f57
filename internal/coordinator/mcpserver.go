package coordinator

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/relayagent/agentd/internal/toolapi"
)

// RepoRootResolver resolves the repo_root an MCP-originated call should
// be scoped to. The MCP front door has no task_id of its own, so the
// caller supplies how a request maps to a sandbox root.
type RepoRootResolver func(ctx context.Context) (string, error)

// NewMCPServer exposes every tool in the registry over the Model
// Context Protocol, additive to the in-process execute()/execute_many()
// surface (§4.C): the same registered handlers are reachable by any
// MCP-speaking client.
func NewMCPServer(r *Registry, resolveRepoRoot RepoRootResolver) *server.MCPServer {
	s := server.NewMCPServer("agentd-tools", "1.0.0")

	for _, spec := range r.ListSpecs() {
		spec := spec
		tool := mcp.NewToolWithRawSchema(spec.Name, spec.Description, rawSchemaOrEmptyObject(spec.Schema))
		s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleMCPCall(ctx, r, resolveRepoRoot, spec.Name, req)
		})
	}
	return s
}

func rawSchemaOrEmptyObject(schema json.RawMessage) json.RawMessage {
	if len(schema) == 0 {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return schema
}

func handleMCPCall(ctx context.Context, r *Registry, resolveRepoRoot RepoRootResolver, toolName string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repoRoot, err := resolveRepoRoot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	argsJSON, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}

	result := r.Execute(ctx, Call{ToolName: toolName, Params: argsJSON}, &toolapi.Context{RepoRoot: repoRoot})
	if !result.Success {
		return mcp.NewToolResultError(result.Error), nil
	}

	payload, err := json.Marshal(result.Data)
	if err != nil {
		return mcp.NewToolResultError("failed to encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
