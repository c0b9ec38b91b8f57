// Package ctxmgr implements the Context Manager (§4.F): token estimation
// and the three-step compaction policy that keeps a task's message history
// under its configured max_context_tokens budget.
package ctxmgr

import (
	"context"
	"fmt"

	"github.com/relayagent/agentd/internal/llm"
)

const (
	softThresholdRatio = 0.80
	hardThresholdRatio = 0.95
	tailKeepCount      = 10
)

// SummarizeFunc asks a model adapter to summarize a dropped span of
// messages for step 3 (middle-message dropping). A nil SummarizeFunc falls
// back to a deterministic header naming the dropped turn count.
type SummarizeFunc func(ctx context.Context, dropped []llm.Message) (string, error)

// Manager enforces max_context_tokens for one task's history.
type Manager struct {
	MaxContextTokens int
	Summarize        SummarizeFunc
}

// New constructs a Manager. summarize may be nil.
func New(maxContextTokens int, summarize SummarizeFunc) *Manager {
	return &Manager{MaxContextTokens: maxContextTokens, Summarize: summarize}
}

// SoftThreshold is 80% of the configured budget: compaction triggers here.
func (m *Manager) SoftThreshold() int {
	return int(float64(m.MaxContextTokens) * softThresholdRatio)
}

// HardThreshold is 95% of the configured budget: compaction is forced here.
func (m *Manager) HardThreshold() int {
	return int(float64(m.MaxContextTokens) * hardThresholdRatio)
}

// NeedsCompaction reports whether history is at or beyond the soft
// threshold.
func (m *Manager) NeedsCompaction(history []llm.Message) bool {
	if m.MaxContextTokens <= 0 {
		return false
	}
	return EstimateHistory(history) >= m.SoftThreshold()
}

// Compact applies the three-step policy in order, stopping as soon as the
// history is back under the soft threshold (§4.F). It never reorders
// messages and never splits a tool_call/tool_result pair.
func (m *Manager) Compact(ctx context.Context, history []llm.Message) ([]llm.Message, error) {
	if !m.NeedsCompaction(history) {
		return history, nil
	}

	out := collapseDuplicateReads(history)
	if EstimateHistory(out) < m.SoftThreshold() {
		return out, nil
	}

	out = truncateOldToolResults(out)
	if EstimateHistory(out) < m.SoftThreshold() {
		return out, nil
	}

	return m.dropMiddle(ctx, out)
}

// dropMiddle implements compaction step 3: keep the first user message (the
// task seed) and the last tailKeepCount messages, replacing everything
// between with a single system-tagged summary message.
func (m *Manager) dropMiddle(ctx context.Context, history []llm.Message) ([]llm.Message, error) {
	if len(history) <= tailKeepCount+1 {
		return history, nil
	}

	firstUserIdx := 0
	for i, msg := range history {
		if msg.Role == "user" {
			firstUserIdx = i
			break
		}
	}

	tailStart := len(history) - tailKeepCount
	if tailStart <= firstUserIdx+1 {
		return history, nil
	}
	tailStart = adjustTailBoundary(history, firstUserIdx+1, tailStart)
	if tailStart <= firstUserIdx+1 {
		return history, nil
	}

	dropped := history[firstUserIdx+1 : tailStart]
	if len(dropped) == 0 {
		return history, nil
	}

	summary := m.summarizeDropped(ctx, dropped)

	out := make([]llm.Message, 0, len(history)-len(dropped)+1)
	out = append(out, history[:firstUserIdx+1]...)
	out = append(out, llm.Message{Role: "system", Content: &summary})
	out = append(out, history[tailStart:]...)
	return out, nil
}

func (m *Manager) summarizeDropped(ctx context.Context, dropped []llm.Message) string {
	if m.Summarize != nil {
		if s, err := m.Summarize(ctx, dropped); err == nil && s != "" {
			return s
		}
	}
	return fmt.Sprintf("[%d earlier messages summarized]", len(dropped))
}
