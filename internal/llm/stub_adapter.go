package llm

import "context"

// StubAdapter is a scripted Adapter used by engine/httpapi/llm tests (S1-S6
// in §8). Each call to Send returns the next Response in Responses, streamed
// as a single text fragment plus any tool calls, then EventDone.
type StubAdapter struct {
	Responses []Response
	calls     int
}

func (s *StubAdapter) Send(ctx context.Context, _ []Message, _ []ToolDef, _ AIConfig) (<-chan AdapterEvent, error) {
	idx := s.calls
	s.calls++

	out := make(chan AdapterEvent, 8)
	go func() {
		defer close(out)

		if idx >= len(s.Responses) {
			out <- AdapterEvent{Kind: EventDone, FinishReason: "stop"}
			return
		}

		resp := s.Responses[idx]
		if resp.Message.Content != nil && *resp.Message.Content != "" {
			out <- AdapterEvent{Kind: EventTextFragment, Text: *resp.Message.Content}
		}
		for _, tc := range resp.Message.ToolCalls {
			out <- AdapterEvent{
				Kind:         EventToolCall,
				ToolCallID:   tc.ID,
				ToolName:     tc.Function.Name,
				ToolArgsJSON: tc.Function.Arguments,
			}
		}
		out <- AdapterEvent{Kind: EventDone, Usage: resp.Usage, FinishReason: resp.FinishReason}
	}()
	return out, nil
}

// CallCount returns how many times Send has been invoked.
func (s *StubAdapter) CallCount() int { return s.calls }
