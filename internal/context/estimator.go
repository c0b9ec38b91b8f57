package ctxmgr

import (
	"encoding/json"

	"github.com/relayagent/agentd/internal/llm"
)

// EstimateTokens applies the character-based heuristic from spec.md §4.F:
// roughly 1 token per 4 ASCII characters, 1 per 2 non-ASCII characters.
// Implementations may substitute a precise tokenizer; this is the
// contractual floor.
func EstimateTokens(s string) int {
	var ascii, nonASCII int
	for _, r := range s {
		if r < 128 {
			ascii++
		} else {
			nonASCII++
		}
	}
	tokens := ceilDiv(ascii, 4) + ceilDiv(nonASCII, 2)
	if tokens == 0 && s != "" {
		tokens = 1
	}
	return tokens
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

// EstimateMessage estimates the token cost of a single message, including
// its structured tool_calls fields rendered as JSON (§4.F: "structured
// fields... are estimated on their JSON rendering").
func EstimateMessage(m llm.Message) int {
	total := EstimateTokens(m.Role) + EstimateTokens(m.ContentString()) + EstimateTokens(m.ToolCallID)
	for _, tc := range m.ToolCalls {
		if b, err := json.Marshal(tc); err == nil {
			total += EstimateTokens(string(b))
		}
	}
	return total
}

// EstimateHistory sums EstimateMessage across the full list.
func EstimateHistory(history []llm.Message) int {
	var total int
	for _, m := range history {
		total += EstimateMessage(m)
	}
	return total
}
