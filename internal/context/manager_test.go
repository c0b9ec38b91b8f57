package ctxmgr

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/relayagent/agentd/internal/llm"
	"github.com/stretchr/testify/require"
)

func text(s string) *string { return &s }

func readFileCall(id, path string) llm.Message {
	return llm.Message{
		Role: "assistant",
		ToolCalls: []llm.ToolCall{{
			ID:   id,
			Type: "function",
			Function: llm.FunctionCall{
				Name:      "read_file",
				Arguments: fmt.Sprintf(`{"file_path":%q}`, path),
			},
		}},
	}
}

func toolResult(id, content string) llm.Message {
	return llm.Message{Role: "tool", ToolCallID: id, Content: text(content)}
}

func TestEstimateTokensASCII(t *testing.T) {
	require.Equal(t, 0, EstimateTokens(""))
	require.Equal(t, 1, EstimateTokens("ab"))
	require.Equal(t, 2, EstimateTokens("abcde")) // ceil(5/4)=2
}

func TestEstimateTokensNonASCIIHeuristic(t *testing.T) {
	// 4 non-ASCII runes => ceil(4/2) = 2 tokens
	require.Equal(t, 2, EstimateTokens("日本語族"))
}

func TestCollapseDuplicateReadsKeepsOnlyMostRecentVerbatim(t *testing.T) {
	history := []llm.Message{
		{Role: "user", Content: text("read the file three times")},
		readFileCall("c1", "a.go"),
		toolResult("c1", "package a\nfunc A() {}"),
		readFileCall("c2", "a.go"),
		toolResult("c2", "package a\nfunc A() {}"),
		readFileCall("c3", "a.go"),
		toolResult("c3", "package a\nfunc A() {}"),
	}

	out := collapseDuplicateReads(history)
	require.Equal(t, duplicateReadPlaceholder, out[2].ContentString())
	require.Equal(t, duplicateReadPlaceholder, out[4].ContentString())
	require.Equal(t, "package a\nfunc A() {}", out[6].ContentString())
}

func TestTruncateOldToolResultsKeepsMostRecentFiveIntact(t *testing.T) {
	long := strings.Repeat("x", 1000)
	var history []llm.Message
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("c%d", i)
		history = append(history, llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: id, Function: llm.FunctionCall{Name: "search_files"}}}})
		history = append(history, toolResult(id, long))
	}

	out := truncateOldToolResults(history)

	var toolIdx []int
	for i, m := range out {
		if m.Role == "tool" {
			toolIdx = append(toolIdx, i)
		}
	}
	require.Len(t, toolIdx, 8)

	// first 3 are stale and truncated
	for _, i := range toolIdx[:3] {
		c := out[i].ContentString()
		require.Less(t, len(c), len(long))
		require.Contains(t, c, truncatedSep)
	}
	// last 5 untouched
	for _, i := range toolIdx[3:] {
		require.Equal(t, long, out[i].ContentString())
	}
}

func TestDropMiddleKeepsFirstUserAndLastTenAndNeverSplitsPair(t *testing.T) {
	var history []llm.Message
	history = append(history, llm.Message{Role: "user", Content: text("seed task")})
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("c%d", i)
		history = append(history, llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: id, Function: llm.FunctionCall{Name: "list_files"}}}})
		history = append(history, toolResult(id, "ok"))
	}

	m := New(1000, nil)
	out, err := m.dropMiddle(context.Background(), history)
	require.NoError(t, err)

	require.Equal(t, "seed task", out[0].ContentString())
	require.Equal(t, "system", out[1].Role)
	require.Contains(t, out[1].ContentString(), "summarized")

	tail := out[2:]
	require.LessOrEqual(t, len(tail), tailKeepCount+1) // tail boundary may grow to avoid splitting a pair
	for i, msg := range tail {
		if msg.Role != "tool" {
			continue
		}
		// the assistant message that emitted this call must also be present in tail
		found := false
		for j := 0; j < i; j++ {
			for _, tc := range tail[j].ToolCalls {
				if tc.ID == msg.ToolCallID {
					found = true
				}
			}
		}
		require.True(t, found, "tool result %d has no matching tool_call kept in the tail", i)
	}
}

func TestCompactS5ForceBudgetKeepsAtMostOneVerbatimRead(t *testing.T) {
	// S5 (spec.md §8): force budget = 1000 tokens, 20 iterations each
	// reading the same 400-byte file. After compaction, history sent to
	// the adapter contains at most one verbatim copy of the file
	// contents; all earlier reads appear as the placeholder.
	content := strings.Repeat("a", 400)
	var history []llm.Message
	history = append(history, llm.Message{Role: "user", Content: text("read repeatedly")})
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("c%d", i)
		history = append(history, readFileCall(id, "same.go"))
		history = append(history, toolResult(id, content))
	}

	m := New(1000, nil)
	out, err := m.Compact(context.Background(), history)
	require.NoError(t, err)

	verbatim := 0
	for _, msg := range out {
		if msg.Role == "tool" && msg.ContentString() == content {
			verbatim++
		}
	}
	require.LessOrEqual(t, verbatim, 1)
}

func TestCompactNoOpUnderSoftThreshold(t *testing.T) {
	history := []llm.Message{{Role: "user", Content: text("hi")}}
	m := New(1_000_000, nil)
	out, err := m.Compact(context.Background(), history)
	require.NoError(t, err)
	require.Equal(t, history, out)
}

func TestCompactUsesSummarizeFuncWhenProvided(t *testing.T) {
	var history []llm.Message
	history = append(history, llm.Message{Role: "user", Content: text("seed")})
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("c%d", i)
		history = append(history, llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: id, Function: llm.FunctionCall{Name: "list_files"}}}})
		history = append(history, toolResult(id, strings.Repeat("z", 2000)))
	}

	called := false
	m := New(1000, func(ctx context.Context, dropped []llm.Message) (string, error) {
		called = true
		return "custom summary", nil
	})
	out, err := m.Compact(context.Background(), history)
	require.NoError(t, err)
	require.True(t, called)

	found := false
	for _, msg := range out {
		if msg.Role == "system" && msg.ContentString() == "custom summary" {
			found = true
		}
	}
	require.True(t, found)
}
