// Package toolapi defines the ToolSpec/ToolResult data model (§3) shared by
// the Tool Coordinator (§4.C) and Tool Handlers (§4.B), breaking the import
// cycle that would otherwise exist between those two packages.
package toolapi

import (
	"context"
	"encoding/json"
)

// ParamType is the semantic type tag for a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
)

// Parameter describes one argument a tool accepts.
type Parameter struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// Spec is the static, immutable-once-registered description of a tool.
type Spec struct {
	Name        string
	Description string
	Parameters  []Parameter
	// Schema is the JSON Schema used both to build the model-facing tool
	// definition and to validate incoming parameters (§4.C).
	Schema json.RawMessage
}

// Result is what a handler returns and what the engine appends to history.
type Result struct {
	Success  bool           `json:"success"`
	Data     any            `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Context is the per-call execution context handed to a handler.
type Context struct {
	RepoRoot string
	// Scratch is a scratch area a handler may use during a call. The engine
	// hands each tool call a fresh, empty map, so nothing stored in it
	// carries over to later calls of the same task.
	Scratch map[string]any
}

// Handler is the interface every tool implementation satisfies (§9 Dynamic
// dispatch across tools: a registry mapping name -> handler value).
type Handler interface {
	Spec() Spec
	Execute(ctx context.Context, params json.RawMessage, hctx *Context) Result
	// ReadOnly reports whether concurrent, side-effect-free execution is safe.
	ReadOnly() bool
}
