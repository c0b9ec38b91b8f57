package coordinator

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relayagent/agentd/internal/toolapi"
	"github.com/stretchr/testify/require"
)

func TestExecuteManyPreservesOrder(t *testing.T) {
	r := New()
	r.Register(fakeHandler{name: "echo", readOnly: true, execute: func(ctx context.Context, params json.RawMessage, hctx *toolapi.Context) toolapi.Result {
		return toolapi.Result{Success: true, Data: string(params)}
	}})

	calls := []Call{
		{ToolName: "echo", Params: json.RawMessage(`"1"`)},
		{ToolName: "echo", Params: json.RawMessage(`"2"`)},
		{ToolName: "echo", Params: json.RawMessage(`"3"`)},
	}
	results := r.ExecuteMany(context.Background(), calls, &toolapi.Context{})
	require.Len(t, results, 3)
	require.Equal(t, `"1"`, results[0].Data)
	require.Equal(t, `"2"`, results[1].Data)
	require.Equal(t, `"3"`, results[2].Data)
}

func TestExecuteManyRunsReadOnlyConcurrently(t *testing.T) {
	r := New()
	var inFlight int32
	var maxInFlight int32
	r.Register(fakeHandler{name: "slow", readOnly: true, execute: func(ctx context.Context, params json.RawMessage, hctx *toolapi.Context) toolapi.Result {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return toolapi.Result{Success: true}
	}})

	calls := make([]Call, 8)
	for i := range calls {
		calls[i] = Call{ToolName: "slow"}
	}
	r.ExecuteMany(context.Background(), calls, &toolapi.Context{})
	require.Greater(t, atomic.LoadInt32(&maxInFlight), int32(1))
}

func TestExecuteManySequentialWhenAnyCallMutates(t *testing.T) {
	r := New()
	var order []int
	r.Register(fakeHandler{name: "ro", readOnly: true, execute: func(ctx context.Context, params json.RawMessage, hctx *toolapi.Context) toolapi.Result {
		order = append(order, 1)
		return toolapi.Result{Success: true}
	}})
	r.Register(fakeHandler{name: "mut", readOnly: false, execute: func(ctx context.Context, params json.RawMessage, hctx *toolapi.Context) toolapi.Result {
		order = append(order, 2)
		return toolapi.Result{Success: true}
	}})

	calls := []Call{{ToolName: "ro"}, {ToolName: "mut"}, {ToolName: "ro"}}
	r.ExecuteMany(context.Background(), calls, &toolapi.Context{})
	require.Equal(t, []int{1, 2, 1}, order)
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	r := New()
	r.Register(fakeHandler{name: "boom", execute: func(ctx context.Context, params json.RawMessage, hctx *toolapi.Context) toolapi.Result {
		panic("kaboom")
	}})

	res := r.Execute(context.Background(), Call{ToolName: "boom"}, &toolapi.Context{})
	require.False(t, res.Success)
	require.Contains(t, res.Error, "panicked")
}
