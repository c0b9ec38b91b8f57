package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAdapter implements Adapter against the Anthropic Messages API.
type AnthropicAdapter struct {
	client anthropic.Client
}

// NewAnthropicAdapter builds an adapter authenticated with apiKey.
func NewAnthropicAdapter(apiKey string) *AnthropicAdapter {
	return &AnthropicAdapter{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (a *AnthropicAdapter) Send(ctx context.Context, messages []Message, tools []ToolDef, cfg AIConfig) (<-chan AdapterEvent, error) {
	params, err := buildAnthropicParams(messages, tools, cfg)
	if err != nil {
		return nil, fmt.Errorf("build anthropic request: %w", err)
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	out := make(chan AdapterEvent, 16)

	go func() {
		defer close(out)

		var msg anthropic.Message
		var usage Usage
		finish := ""

		for stream.Next() {
			event := stream.Current()
			if err := msg.Accumulate(event); err != nil {
				out <- AdapterEvent{Err: fmt.Errorf("accumulate anthropic stream: %w", err)}
				return
			}

			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := variant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text != "" {
						out <- AdapterEvent{Kind: EventTextFragment, Text: delta.Text}
					}
				case anthropic.InputJSONDelta:
					if delta.PartialJSON != "" {
						blockIdx := int(variant.Index)
						if blockIdx < len(msg.Content) {
							if block, ok := msg.Content[blockIdx].AsAny().(anthropic.ToolUseBlock); ok {
								out <- AdapterEvent{
									Kind:         EventToolCall,
									ToolCallID:   block.ID,
									ToolName:     block.Name,
									ToolArgsJSON: delta.PartialJSON,
								}
							}
						}
					}
				}
			case anthropic.MessageDeltaEvent:
				if variant.Delta.StopReason != "" {
					finish = mapAnthropicStopReason(string(variant.Delta.StopReason))
				}
				usage.TokensOut = int(variant.Usage.OutputTokens)
			}
		}
		if err := stream.Err(); err != nil {
			out <- AdapterEvent{Err: fmt.Errorf("anthropic stream: %w", err)}
			return
		}

		usage.TokensIn = int(msg.Usage.InputTokens)
		if usage.TokensOut == 0 {
			usage.TokensOut = int(msg.Usage.OutputTokens)
		}
		if finish == "" {
			finish = mapAnthropicStopReason(string(msg.StopReason))
		}

		out <- AdapterEvent{Kind: EventDone, Usage: usage, FinishReason: finish}
	}()

	return out, nil
}

func buildAnthropicParams(messages []Message, tools []ToolDef, cfg AIConfig) (anthropic.MessageNewParams, error) {
	var system string
	var msgs []anthropic.MessageParam

	for _, m := range messages {
		switch m.Role {
		case "system":
			system = m.ContentString()
		case "user":
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.ContentString())))
		case "assistant":
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != nil && *m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(*m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input map[string]any
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
		case "tool":
			msgs = append(msgs, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.ContentString(), false),
			))
		}
	}

	var toolParams []anthropic.ToolUnionParam
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		_ = json.Unmarshal(t.Function.Parameters, &schema)
		toolParams = append(toolParams, anthropic.ToolUnionParamOfTool(schema, t.Function.Name))
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Model),
		MaxTokens: maxTokens,
		Messages:  msgs,
		Tools:     toolParams,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(cfg.Temperature)
	}
	if cfg.TopP > 0 {
		params.TopP = anthropic.Float(cfg.TopP)
	}
	return params, nil
}

func mapAnthropicStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return reason
	}
}
