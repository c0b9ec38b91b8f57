package llm

import "context"

// Adapter is the contract the Task Engine depends on (§4.H). Implementations
// are external to the core loop — the engine treats an Adapter as fallible
// and cancellable, never assuming a specific provider's wire format.
type Adapter interface {
	// Send streams a model response for messages given the available tools
	// and request configuration. The returned channel is closed after a
	// EventDone (or error) event has been delivered.
	Send(ctx context.Context, messages []Message, tools []ToolDef, cfg AIConfig) (<-chan AdapterEvent, error)
}

// Accumulate collects a stream of AdapterEvents into a single Response,
// invoking onText for each text fragment as it arrives so callers can
// forward partial output (e.g. as api_response events) while still waiting
// for the full message.
func Accumulate(events <-chan AdapterEvent, onText func(string)) (*Response, error) {
	var content []byte
	calls := map[string]*ToolCall{}
	var order []string
	var usage Usage
	var finishReason string

	for ev := range events {
		if ev.Err != nil {
			return nil, ev.Err
		}
		switch ev.Kind {
		case EventTextFragment:
			if ev.Text != "" {
				content = append(content, ev.Text...)
				if onText != nil {
					onText(ev.Text)
				}
			}
		case EventToolCall:
			tc, ok := calls[ev.ToolCallID]
			if !ok {
				tc = &ToolCall{ID: ev.ToolCallID, Type: "function"}
				calls[ev.ToolCallID] = tc
				order = append(order, ev.ToolCallID)
			}
			if ev.ToolName != "" {
				tc.Function.Name = ev.ToolName
			}
			tc.Function.Arguments += ev.ToolArgsJSON
		case EventDone:
			usage = ev.Usage
			finishReason = ev.FinishReason
		}
	}

	var contentPtr *string
	if len(content) > 0 {
		s := string(content)
		contentPtr = &s
	}

	toolCalls := make([]ToolCall, 0, len(order))
	for _, id := range order {
		toolCalls = append(toolCalls, *calls[id])
	}

	return &Response{
		Message: Message{
			Role:      "assistant",
			Content:   contentPtr,
			ToolCalls: toolCalls,
		},
		FinishReason: finishReason,
		Usage:        usage,
	}, nil
}
