package coordinator

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/relayagent/agentd/internal/toolapi"
	"github.com/stretchr/testify/require"
)

func TestExecuteCachesCacheableTool(t *testing.T) {
	r := New()
	var calls int32
	r.Register(fakeHandler{name: "list_files", readOnly: true, execute: func(ctx context.Context, params json.RawMessage, hctx *toolapi.Context) toolapi.Result {
		atomic.AddInt32(&calls, 1)
		return toolapi.Result{Success: true, Data: "entries"}
	}})

	params := json.RawMessage(`{"path":"."}`)
	first := r.Execute(context.Background(), Call{ToolName: "list_files", Params: params}, &toolapi.Context{})
	second := r.Execute(context.Background(), Call{ToolName: "list_files", Params: params}, &toolapi.Context{})

	require.Equal(t, first, second)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestExecuteDoesNotCacheNonCacheableTool(t *testing.T) {
	r := New()
	var calls int32
	r.Register(fakeHandler{name: "read_file", readOnly: true, execute: func(ctx context.Context, params json.RawMessage, hctx *toolapi.Context) toolapi.Result {
		atomic.AddInt32(&calls, 1)
		return toolapi.Result{Success: true}
	}})

	params := json.RawMessage(`{"file_path":"a.txt"}`)
	r.Execute(context.Background(), Call{ToolName: "read_file", Params: params}, &toolapi.Context{})
	r.Execute(context.Background(), Call{ToolName: "read_file", Params: params}, &toolapi.Context{})

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestExecuteDoesNotCacheFailedResult(t *testing.T) {
	r := New()
	var calls int32
	r.Register(fakeHandler{name: "search_files", readOnly: true, execute: func(ctx context.Context, params json.RawMessage, hctx *toolapi.Context) toolapi.Result {
		atomic.AddInt32(&calls, 1)
		return toolapi.Result{Success: false, Error: "boom"}
	}})

	params := json.RawMessage(`{"pattern":"x"}`)
	r.Execute(context.Background(), Call{ToolName: "search_files", Params: params}, &toolapi.Context{})
	r.Execute(context.Background(), Call{ToolName: "search_files", Params: params}, &toolapi.Context{})

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCacheEvictsLeastRecentlyUsedBeyondCapacity(t *testing.T) {
	c := newResultCache(cacheTTL, 2)
	c.put("list_files", json.RawMessage(`1`), toolapi.Result{Success: true, Data: 1})
	c.put("list_files", json.RawMessage(`2`), toolapi.Result{Success: true, Data: 2})
	c.put("list_files", json.RawMessage(`3`), toolapi.Result{Success: true, Data: 3})

	_, ok := c.get("list_files", json.RawMessage(`1`))
	require.False(t, ok)
	_, ok = c.get("list_files", json.RawMessage(`3`))
	require.True(t, ok)
}
