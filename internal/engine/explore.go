package engine

import (
	"context"
	"encoding/json"

	"github.com/relayagent/agentd/internal/coordinator"
	"github.com/relayagent/agentd/internal/llm"
	"github.com/relayagent/agentd/internal/tools"
	"github.com/relayagent/agentd/internal/toolapi"
)

const defaultExploreMaxIterations = 10

// NewExploreRunner builds the explore tool's sub-agent (§4.B, supplemented
// feature): a short tool-using loop scoped to the read-only tool set,
// driven by the same adapter/config as the parent task, returning its
// final assistant text as the exploration summary.
func NewExploreRunner(adapter llm.Adapter, cfg llm.AIConfig) tools.ExploreFunc {
	reg := coordinator.New()
	for _, h := range tools.ReadOnlyToolSet() {
		reg.Register(h)
	}
	toolDefs := specsToToolDefs(reg.ListSpecs())

	return func(ctx context.Context, task string, hctx *toolapi.Context) (string, error) {
		history := []llm.Message{llm.TextMessage("user", task)}
		var lastText string

		for i := 0; i < defaultExploreMaxIterations; i++ {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}

			evs, err := adapter.Send(ctx, history, toolDefs, cfg)
			if err != nil {
				return "", err
			}
			resp, err := llm.Accumulate(evs, nil)
			if err != nil {
				return "", err
			}

			history = append(history, resp.Message)
			lastText = resp.Message.ContentString()

			if len(resp.Message.ToolCalls) == 0 {
				return lastText, nil
			}

			for _, tc := range resp.Message.ToolCalls {
				rawParams := json.RawMessage(tc.Function.Arguments)
				result := reg.Execute(ctx, coordinator.Call{ToolName: tc.Function.Name, Params: rawParams}, hctx)
				history = append(history, llm.ToolResultMessage(tc.ID, renderResultText(result)))
			}
		}

		return lastText, nil
	}
}
