package coordinator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/relayagent/agentd/internal/toolapi"
	"github.com/stretchr/testify/require"
)

var requirePatternSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"pattern": {"type": "string"}},
	"required": ["pattern"]
}`)

func TestExecuteRejectsMissingRequiredParam(t *testing.T) {
	r := New()
	r.Register(fakeHandler{name: "search", schema: requirePatternSchema})

	res := r.Execute(context.Background(), Call{ToolName: "search", Params: json.RawMessage(`{}`)}, &toolapi.Context{})
	require.False(t, res.Success)
}

func TestExecutePassesValidParams(t *testing.T) {
	r := New()
	r.Register(fakeHandler{name: "search", schema: requirePatternSchema})

	res := r.Execute(context.Background(),
		Call{ToolName: "search", Params: json.RawMessage(`{"pattern":"x"}`)}, &toolapi.Context{})
	require.True(t, res.Success)
}

func TestExecuteWithoutSchemaSkipsValidation(t *testing.T) {
	r := New()
	r.Register(fakeHandler{name: "noop"})

	res := r.Execute(context.Background(), Call{ToolName: "noop", Params: json.RawMessage(`{"anything":1}`)}, &toolapi.Context{})
	require.True(t, res.Success)
}
