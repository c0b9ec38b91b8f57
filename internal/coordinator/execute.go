package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relayagent/agentd/internal/toolapi"
	"golang.org/x/sync/errgroup"
)

// executeWorkerDegree bounds the concurrent dispatch of an
// execute_many batch once every participating handler has declared
// itself side-effect-free (spec.md §9: "a worker pool of degree 4").
const executeWorkerDegree = 4

// Call is one tool invocation: a tool name plus raw JSON arguments.
type Call struct {
	ToolName string
	Params   json.RawMessage
}

// Execute looks up call.ToolName, validates its parameters against the
// registered ToolSpec, and invokes the handler inside a guarded scope
// that turns a panicking handler into a ToolResult instead of
// propagating the panic (§4.C: "Never raises").
func (r *Registry) Execute(ctx context.Context, call Call, hctx *toolapi.Context) (result toolapi.Result) {
	h, ok := r.lookup(call.ToolName)
	if !ok {
		return toolapi.Result{Success: false, Error: "unknown tool: " + call.ToolName}
	}

	if cached, ok := r.cache.get(call.ToolName, call.Params); ok {
		return cached
	}

	if err := r.validator.validateParams(h.Spec(), call.Params); err != nil {
		return toolapi.Result{Success: false, Error: err.Error()}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return toolapi.Result{Success: false, Error: "rate limit wait: " + err.Error()}
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = toolapi.Result{Success: false, Error: fmt.Sprintf("tool %s panicked: %v", call.ToolName, rec)}
		}
	}()

	result = h.Execute(ctx, call.Params, hctx)
	r.cache.put(call.ToolName, call.Params, result)
	return result
}

// ExecuteMany runs calls in request order. If every participating
// handler declares itself read-only, calls run concurrently on a
// bounded worker pool; otherwise they run sequentially to avoid
// unordered filesystem mutation (§4.C). Result ordering always matches
// call ordering.
func (r *Registry) ExecuteMany(ctx context.Context, calls []Call, hctx *toolapi.Context) []toolapi.Result {
	results := make([]toolapi.Result, len(calls))
	if len(calls) == 0 {
		return results
	}

	if r.allReadOnly(calls) {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(executeWorkerDegree)
		for i, call := range calls {
			i, call := i, call
			g.Go(func() error {
				results[i] = r.Execute(gctx, call, hctx)
				return nil
			})
		}
		_ = g.Wait()
		return results
	}

	for i, call := range calls {
		results[i] = r.Execute(ctx, call, hctx)
	}
	return results
}

func (r *Registry) allReadOnly(calls []Call) bool {
	for _, call := range calls {
		h, ok := r.lookup(call.ToolName)
		if !ok || !h.ReadOnly() {
			return false
		}
	}
	return true
}
