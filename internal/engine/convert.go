package engine

import (
	"encoding/json"
	"fmt"

	"github.com/relayagent/agentd/internal/llm"
	"github.com/relayagent/agentd/internal/store"
	"github.com/relayagent/agentd/internal/toolapi"
)

// toLLMMessages projects the persisted conversation shape onto the wire
// shape the Model Adapter consumes.
func toLLMMessages(msgs []store.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case store.RoleUser:
			out = append(out, llm.TextMessage("user", m.Content))
		case store.RoleAssistant:
			content := m.Content
			var calls []llm.ToolCall
			for _, tc := range m.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Parameters)
				calls = append(calls, llm.ToolCall{
					ID:   tc.CallID,
					Type: "function",
					Function: llm.FunctionCall{
						Name:      tc.ToolName,
						Arguments: string(argsJSON),
					},
				})
			}
			out = append(out, llm.Message{Role: "assistant", Content: &content, ToolCalls: calls})
		case store.RoleToolResult:
			content := m.Content
			out = append(out, llm.Message{Role: "tool", Content: &content, ToolCallID: m.CallID})
		}
	}
	return out
}

func userStoreMessage(content string, ts float64) store.Message {
	return store.Message{Role: store.RoleUser, Content: content, Timestamp: ts}
}

func assistantStoreMessage(msg llm.Message, ts float64) store.Message {
	var calls []store.ToolCallRecord
	for _, tc := range msg.ToolCalls {
		var params any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &params)
		calls = append(calls, store.ToolCallRecord{
			CallID:     tc.ID,
			ToolName:   tc.Function.Name,
			Parameters: params,
		})
	}
	return store.Message{Role: store.RoleAssistant, Content: msg.ContentString(), Timestamp: ts, ToolCalls: calls}
}

func toolResultStoreMessage(callID, toolName string, rawParams json.RawMessage, result toolapi.Result, ts float64) store.Message {
	var params any
	_ = json.Unmarshal(rawParams, &params)
	dto := &store.ToolResultDTO{Success: result.Success, Data: result.Data, Error: result.Error, Metadata: result.Metadata}
	return store.Message{
		Role:      store.RoleToolResult,
		CallID:    callID,
		Timestamp: ts,
		Content:   renderResultText(result),
		ToolCalls: []store.ToolCallRecord{{CallID: callID, ToolName: toolName, Parameters: params, Result: dto}},
	}
}

// renderResultText is what gets sent back to the model as the tool
// message's content (§4.G step f).
func renderResultText(result toolapi.Result) string {
	if !result.Success {
		return fmt.Sprintf("error: %s", result.Error)
	}
	if result.Data == nil {
		return "ok"
	}
	b, err := json.Marshal(result.Data)
	if err != nil {
		return "ok"
	}
	return string(b)
}

func specsToToolDefs(specs []toolapi.Spec) []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, llm.ToolDef{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Schema,
			},
		})
	}
	return defs
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
