package ctxmgr

import (
	"encoding/json"

	"github.com/relayagent/agentd/internal/llm"
)

const (
	maxToolResultsUntouched = 5
	truncatedHalfLen        = 200
	truncatedSep            = "…(truncated)…"
	duplicateReadPlaceholder = "[Previous file content shown above]"
)

// toolCallReadPaths maps each read_file tool_call id to the file_path it
// requested, so the duplicate-collapse step can match a tool result back to
// the path it answered.
func toolCallReadPaths(history []llm.Message) map[string]string {
	paths := make(map[string]string)
	for _, m := range history {
		for _, tc := range m.ToolCalls {
			if tc.Function.Name != "read_file" {
				continue
			}
			var args struct {
				FilePath string `json:"file_path"`
			}
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil && args.FilePath != "" {
				paths[tc.ID] = args.FilePath
			}
		}
	}
	return paths
}

// assistantIndexForToolCall returns the index of the assistant message that
// emitted the tool_call with the given id, or -1 if not found.
func assistantIndexForToolCall(history []llm.Message, id string) int {
	if id == "" {
		return -1
	}
	for i, m := range history {
		for _, tc := range m.ToolCalls {
			if tc.ID == id {
				return i
			}
		}
	}
	return -1
}

// collapseDuplicateReads implements compaction step 1 (§4.F): when
// read_file(path=X) occurs more than once, every tool result but the most
// recent is replaced with a placeholder.
func collapseDuplicateReads(history []llm.Message) []llm.Message {
	paths := toolCallReadPaths(history)
	if len(paths) == 0 {
		return history
	}

	lastIdxByPath := make(map[string]int)
	for i, m := range history {
		if m.Role != "tool" {
			continue
		}
		if path, ok := paths[m.ToolCallID]; ok {
			lastIdxByPath[path] = i
		}
	}

	out := make([]llm.Message, len(history))
	copy(out, history)
	for i := range out {
		if out[i].Role != "tool" {
			continue
		}
		path, ok := paths[out[i].ToolCallID]
		if !ok || lastIdxByPath[path] == i {
			continue
		}
		placeholder := duplicateReadPlaceholder
		out[i].Content = &placeholder
	}
	return out
}

// truncateOldToolResults implements compaction step 2 (§4.F): tool results
// older than the most recent 5 are truncated to their first and last 200
// characters.
func truncateOldToolResults(history []llm.Message) []llm.Message {
	var toolIdx []int
	for i, m := range history {
		if m.Role == "tool" {
			toolIdx = append(toolIdx, i)
		}
	}
	if len(toolIdx) <= maxToolResultsUntouched {
		return history
	}

	cutoff := len(toolIdx) - maxToolResultsUntouched
	stale := make(map[int]bool, cutoff)
	for _, i := range toolIdx[:cutoff] {
		stale[i] = true
	}

	out := make([]llm.Message, len(history))
	copy(out, history)
	minLen := 2*truncatedHalfLen + len([]rune(truncatedSep))
	for i := range out {
		if !stale[i] {
			continue
		}
		content := []rune(out[i].ContentString())
		if len(content) <= minLen {
			continue
		}
		truncated := string(content[:truncatedHalfLen]) + truncatedSep + string(content[len(content)-truncatedHalfLen:])
		out[i].Content = &truncated
	}
	return out
}

// adjustTailBoundary walks tailStart backwards while it would split a
// tool_call/tool_result pair across the keep/drop boundary, so the pair is
// always kept or dropped as a whole (§4.F).
func adjustTailBoundary(history []llm.Message, floor, tailStart int) int {
	for tailStart > floor && history[tailStart].Role == "tool" {
		aIdx := assistantIndexForToolCall(history, history[tailStart].ToolCallID)
		if aIdx >= 0 && aIdx < tailStart {
			tailStart = aIdx
			continue
		}
		break
	}
	return tailStart
}
