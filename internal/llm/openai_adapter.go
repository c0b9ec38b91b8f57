package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAdapter implements Adapter against the OpenAI Chat Completions API.
type OpenAIAdapter struct {
	client openai.Client
}

// NewOpenAIAdapter builds an adapter authenticated with apiKey, optionally
// targeting a compatible base URL (e.g. an Azure or self-hosted gateway).
func NewOpenAIAdapter(apiKey, baseURL string) *OpenAIAdapter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{client: openai.NewClient(opts...)}
}

func (a *OpenAIAdapter) Send(ctx context.Context, messages []Message, tools []ToolDef, cfg AIConfig) (<-chan AdapterEvent, error) {
	params, err := buildOpenAIParams(messages, tools, cfg)
	if err != nil {
		return nil, fmt.Errorf("build openai request: %w", err)
	}

	stream := a.client.Chat.Completions.NewStreaming(ctx, params)
	out := make(chan AdapterEvent, 16)

	go func() {
		defer close(out)

		acc := openai.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					out <- AdapterEvent{Kind: EventTextFragment, Text: choice.Delta.Content}
				}
				for _, tc := range choice.Delta.ToolCalls {
					out <- AdapterEvent{
						Kind:         EventToolCall,
						ToolCallID:   tc.ID,
						ToolName:     tc.Function.Name,
						ToolArgsJSON: tc.Function.Arguments,
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- AdapterEvent{Err: fmt.Errorf("openai stream: %w", err)}
			return
		}

		usage := Usage{}
		finish := ""
		if len(acc.Choices) > 0 {
			finish = mapOpenAIFinishReason(string(acc.Choices[0].FinishReason))
		}
		usage.TokensIn = int(acc.Usage.PromptTokens)
		usage.TokensOut = int(acc.Usage.CompletionTokens)

		out <- AdapterEvent{Kind: EventDone, Usage: usage, FinishReason: finish}
	}()

	return out, nil
}

func buildOpenAIParams(messages []Message, tools []ToolDef, cfg AIConfig) (openai.ChatCompletionNewParams, error) {
	var msgs []openai.ChatCompletionMessageParamUnion

	for _, m := range messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.ContentString()))
		case "user":
			msgs = append(msgs, openai.UserMessage(m.ContentString()))
		case "assistant":
			asst := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != nil {
				asst.Content.OfString = openai.String(*m.Content)
			}
			for _, tc := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case "tool":
			msgs = append(msgs, openai.ToolMessage(m.ContentString(), m.ToolCallID))
		}
	}

	var toolParams []openai.ChatCompletionToolParam
	for _, t := range tools {
		var schema map[string]any
		_ = json.Unmarshal(t.Function.Parameters, &schema)
		toolParams = append(toolParams, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Function.Name,
				Description: openai.String(t.Function.Description),
				Parameters:  schema,
			},
		})
	}

	params := openai.ChatCompletionNewParams{
		Model:    cfg.Model,
		Messages: msgs,
		Tools:    toolParams,
	}
	if cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(cfg.MaxTokens))
	}
	if cfg.Temperature > 0 {
		params.Temperature = openai.Float(cfg.Temperature)
	}
	if cfg.TopP > 0 {
		params.TopP = openai.Float(cfg.TopP)
	}
	if cfg.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(cfg.FrequencyPenalty)
	}
	if cfg.PresencePenalty != 0 {
		params.PresencePenalty = openai.Float(cfg.PresencePenalty)
	}
	return params, nil
}

func mapOpenAIFinishReason(reason string) string {
	switch reason {
	case "stop":
		return "stop"
	case "length":
		return "length"
	case "tool_calls":
		return "tool_calls"
	default:
		return reason
	}
}
