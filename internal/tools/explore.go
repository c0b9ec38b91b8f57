package tools

import (
	"context"
	"encoding/json"

	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/toolapi"
)

// ExploreFunc runs a read-only sub-agent over a task description and
// returns its summary. The Task Engine supplies the implementation so
// the tools package has no dependency on the engine (§4.B, supplemented
// feature: exploration sub-agent).
type ExploreFunc func(ctx context.Context, task string, hctx *toolapi.Context) (string, error)

// Explore implements the explore tool: a read-only child agent scoped to
// list_files, search_files, read_file, list_code_definitions, and the
// read-only git tools, used to gather context without risking a
// mutating action.
type Explore struct {
	Run ExploreFunc
}

func (Explore) Spec() toolapi.Spec {
	return toolapi.Spec{
		Name:        "explore",
		Description: "Delegates a read-only investigation task to a sub-agent restricted to search and read tools, returning a summary.",
		Parameters: []toolapi.Parameter{
			{Name: "task", Type: toolapi.TypeString, Required: true},
		},
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"task": {"type": "string"}},
			"required": ["task"]
		}`),
	}
}

func (Explore) ReadOnly() bool { return true }

type exploreParams struct {
	Task string `json:"task"`
}

func (e Explore) Execute(ctx context.Context, raw json.RawMessage, hctx *toolapi.Context) toolapi.Result {
	params, err := parseParams[exploreParams](raw, "explore")
	if err != nil {
		return errResult(err)
	}
	if params.Task == "" {
		return errResult(errkind.New(errkind.InvalidParameters, "explore", errRequired("task")))
	}
	if e.Run == nil {
		return errResult(errkind.New(errkind.ModelFailure, "explore", errRequired("explore sub-agent")))
	}

	summary, runErr := e.Run(ctx, params.Task, hctx)
	if runErr != nil {
		kind := errkind.ModelFailure
		if ctx.Err() != nil {
			kind = errkind.Cancelled
		}
		return errResult(errkind.New(kind, "explore", runErr))
	}

	return toolapi.Result{
		Success: true,
		Data:    map[string]any{"summary": summary},
	}
}

// ReadOnlyToolSet returns the handler set the explore sub-agent may use:
// the read/search/list tools, excluding anything that mutates the
// working tree.
func ReadOnlyToolSet() []toolapi.Handler {
	return []toolapi.Handler{
		ReadFile{},
		ListFiles{},
		SearchFiles{},
		ListCodeDefinitions{},
		GitStatus{},
		GitDiff{},
		GitLog{},
		GitBranch{},
	}
}
