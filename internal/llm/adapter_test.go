package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccumulateTextAndToolCalls(t *testing.T) {
	events := make(chan AdapterEvent, 8)
	events <- AdapterEvent{Kind: EventTextFragment, Text: "Hello "}
	events <- AdapterEvent{Kind: EventTextFragment, Text: "world"}
	events <- AdapterEvent{Kind: EventToolCall, ToolCallID: "call_1", ToolName: "read_file", ToolArgsJSON: `{"file_path":`}
	events <- AdapterEvent{Kind: EventToolCall, ToolCallID: "call_1", ToolArgsJSON: `"README.md"}`}
	events <- AdapterEvent{Kind: EventDone, Usage: Usage{TokensIn: 10, TokensOut: 5}, FinishReason: "tool_calls"}
	close(events)

	var streamed string
	resp, err := Accumulate(events, func(s string) { streamed += s })
	require.NoError(t, err)
	require.Equal(t, "Hello world", streamed)
	require.Equal(t, "Hello world", resp.Message.ContentString())
	require.Len(t, resp.Message.ToolCalls, 1)
	require.Equal(t, "read_file", resp.Message.ToolCalls[0].Function.Name)
	require.Equal(t, `{"file_path":"README.md"}`, resp.Message.ToolCalls[0].Function.Arguments)
	require.Equal(t, "tool_calls", resp.FinishReason)
	require.Equal(t, 10, resp.Usage.TokensIn)
}

func TestStubAdapterSequencesResponses(t *testing.T) {
	text1 := "first"
	text2 := "second"
	stub := &StubAdapter{Responses: []Response{
		{Message: TextMessage("assistant", text1), FinishReason: "stop"},
		{Message: TextMessage("assistant", text2), FinishReason: "stop"},
	}}

	events1, err := stub.Send(context.Background(), nil, nil, AIConfig{})
	require.NoError(t, err)
	resp1, err := Accumulate(events1, nil)
	require.NoError(t, err)
	require.Equal(t, text1, resp1.Message.ContentString())

	events2, err := stub.Send(context.Background(), nil, nil, AIConfig{})
	require.NoError(t, err)
	resp2, err := Accumulate(events2, nil)
	require.NoError(t, err)
	require.Equal(t, text2, resp2.Message.ContentString())

	require.Equal(t, 2, stub.CallCount())
}
