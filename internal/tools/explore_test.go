package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/relayagent/agentd/internal/toolapi"
	"github.com/stretchr/testify/require"
)

func TestExploreDelegatesToRunFunc(t *testing.T) {
	called := false
	h := Explore{Run: func(ctx context.Context, task string, hctx *toolapi.Context) (string, error) {
		called = true
		require.Equal(t, "find the bug", task)
		return "summary text", nil
	}}

	res := h.Execute(context.Background(),
		json.RawMessage(`{"task":"find the bug"}`), &toolapi.Context{RepoRoot: "/repo"})

	require.True(t, called)
	require.True(t, res.Success)
	data := res.Data.(map[string]any)
	require.Equal(t, "summary text", data["summary"])
}

func TestExploreRequiresRunFunc(t *testing.T) {
	h := Explore{}
	res := h.Execute(context.Background(),
		json.RawMessage(`{"task":"x"}`), &toolapi.Context{RepoRoot: "/repo"})

	require.False(t, res.Success)
}

func TestExploreRequiresTask(t *testing.T) {
	h := Explore{Run: func(ctx context.Context, task string, hctx *toolapi.Context) (string, error) {
		return "", nil
	}}
	res := h.Execute(context.Background(), json.RawMessage(`{}`), &toolapi.Context{RepoRoot: "/repo"})

	require.False(t, res.Success)
}

func TestReadOnlyToolSetExcludesMutatingTools(t *testing.T) {
	set := ReadOnlyToolSet()
	for _, h := range set {
		require.True(t, h.ReadOnly(), h.Spec().Name)
	}
}
