package engine

import (
	"context"
	"encoding/json"
	"time"

	ctxmgr "github.com/relayagent/agentd/internal/context"
	"github.com/relayagent/agentd/internal/coordinator"
	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/index"
	"github.com/relayagent/agentd/internal/llm"
	"github.com/relayagent/agentd/internal/store"
	"github.com/relayagent/agentd/internal/telemetry"
	"github.com/relayagent/agentd/internal/toolapi"
)

// nowFunc returns the current time as fractional seconds since the epoch.
var nowFunc = func() float64 { return float64(time.Now().UnixMilli()) / 1000 }

func (e *Engine) runLoop(parentCtx context.Context, in RunInput, adapter llm.Adapter, lockKey string, events chan<- Event) {
	defer close(events)
	if lockKey != "" {
		defer e.unlock(lockKey)
	}

	taskID := in.TaskID
	isNew := true
	description := truncate(in.UserInput, descriptionMaxLen)
	var history []store.Message

	if taskID != "" {
		if rec, found, _ := e.Index.Get(taskID); found {
			isNew = false
			description = rec.Description
			if loaded, err := e.Store.Load(in.RepoRoot, taskID); err == nil {
				history = loaded
			}
		}
	}
	if isNew {
		rec, err := e.Index.Upsert(taskID, index.Seed{
			Description: description,
			Provider:    in.AIConfig.Provider,
			Model:       in.AIConfig.Model,
			RepoRoot:    in.RepoRoot,
		}, nowFunc())
		if err != nil {
			events <- Event{Type: EventError, Message: err.Error()}
			return
		}
		taskID = rec.TaskID
	}

	events <- Event{Type: EventTaskStarted, TaskID: taskID, IsNew: isNew}

	e.createCheckpoint(taskID, in.UserInput, len(history))

	userMsg := userStoreMessage(in.UserInput, nowFunc())
	e.Store.Append(taskID, userMsg)
	history = append(history, userMsg)

	var tokensIn, tokensOut int64
	var totalCost float64
	var lastAssistantText string

	summarize := func(sumCtx context.Context, dropped []llm.Message) (string, error) {
		prompt := []llm.Message{llm.TextMessage("user", "Summarize the following conversation span concisely, preserving any decisions or facts that matter:\n"+renderDropped(dropped))}
		evs, err := adapter.Send(sumCtx, prompt, nil, in.AIConfig)
		if err != nil {
			return "", err
		}
		resp, err := llm.Accumulate(evs, nil)
		if err != nil {
			return "", err
		}
		return resp.Message.ContentString(), nil
	}
	ctxManager := ctxmgr.New(in.AIConfig.MaxContextTokens, summarize)

	maxIterations := in.AIConfig.MaxIterations
	var finalErr error

iterationLoop:
	for i := 1; ; i++ {
		if parentCtx.Err() != nil {
			finalErr = errkind.New(errkind.Cancelled, "engine.run", parentCtx.Err())
			break
		}
		if maxIterations > 0 && i > maxIterations {
			finalErr = errkind.New(errkind.BudgetExhausted, "engine.run", errIterationBudgetExhausted)
			break
		}

		iterCtx, iterSpan := e.Tracer.StartIteration(parentCtx, taskID, i)

		messages := toLLMMessages(history)
		if ctxManager.MaxContextTokens > 0 {
			compacted, err := ctxManager.Compact(iterCtx, messages)
			if err == nil {
				messages = compacted
			}
		}

		events <- Event{Type: EventAPIRequestStarted, Iteration: i, MessageCount: len(messages)}

		toolDefs := specsToToolDefs(e.Registry.ListSpecs())
		adapterEvents, err := adapter.Send(iterCtx, messages, toolDefs, in.AIConfig)
		if err != nil {
			telemetry.RecordOutcome(iterSpan, false, err.Error())
			iterSpan.End()
			finalErr = errkind.New(errkind.ModelFailure, "engine.run", err)
			break
		}

		resp, err := llm.Accumulate(adapterEvents, func(frag string) {
			events <- Event{Type: EventAPIResponse, Content: frag, Iteration: i}
		})
		if err != nil {
			telemetry.RecordOutcome(iterSpan, false, err.Error())
			iterSpan.End()
			finalErr = errkind.New(errkind.ModelFailure, "engine.run", err)
			break
		}

		tokensIn += int64(resp.Usage.TokensIn)
		tokensOut += int64(resp.Usage.TokensOut)
		totalCost += resp.Usage.Cost

		now := nowFunc()
		assistantMsg := assistantStoreMessage(resp.Message, now)
		e.Store.Append(taskID, assistantMsg)
		history = append(history, assistantMsg)
		lastAssistantText = resp.Message.ContentString()

		if len(resp.Message.ToolCalls) == 0 {
			telemetry.RecordOutcome(iterSpan, true, "")
			iterSpan.End()
			break
		}

		summaries := make([]ToolCallSummary, 0, len(resp.Message.ToolCalls))
		for _, tc := range resp.Message.ToolCalls {
			summaries = append(summaries, ToolCallSummary{CallID: tc.ID, ToolName: tc.Function.Name})
		}
		events <- Event{Type: EventToolCallsDetected, ToolCalls: summaries, Iteration: i}

		sawAttemptCompletion := false
		for _, tc := range resp.Message.ToolCalls {
			events <- Event{Type: EventToolExecutionStarted, ToolName: tc.Function.Name}

			toolCtx, toolSpan := e.Tracer.StartToolDispatch(iterCtx, tc.Function.Name)
			dispatchCtx, cancel := context.WithTimeout(toolCtx, e.toolTimeout())
			hctx := &toolapi.Context{RepoRoot: in.RepoRoot, Scratch: make(map[string]any)}
			rawParams := json.RawMessage(tc.Function.Arguments)
			e.captureFileBeforeModification(taskID, in.RepoRoot, tc.Function.Name, rawParams)
			result := e.Registry.Execute(dispatchCtx, coordinator.Call{ToolName: tc.Function.Name, Params: rawParams}, hctx)
			cancel()
			telemetry.RecordOutcome(toolSpan, result.Success, result.Error)
			toolSpan.End()

			events <- Event{Type: EventToolExecutionComplete, ToolName: tc.Function.Name, Result: &result}

			trMsg := toolResultStoreMessage(tc.ID, tc.Function.Name, rawParams, result, nowFunc())
			e.Store.Append(taskID, trMsg)
			history = append(history, trMsg)

			if tc.Function.Name == attemptCompletionTool {
				sawAttemptCompletion = true
			}
		}

		if sawAttemptCompletion {
			telemetry.RecordOutcome(iterSpan, true, "")
			iterSpan.End()
			break
		}
		if parentCtx.Err() != nil {
			telemetry.RecordOutcome(iterSpan, false, parentCtx.Err().Error())
			iterSpan.End()
			finalErr = errkind.New(errkind.Cancelled, "engine.run", parentCtx.Err())
			break iterationLoop
		}

		telemetry.RecordOutcome(iterSpan, true, "")
		iterSpan.End()
	}

	meta := store.Metadata{
		TaskID:      taskID,
		Description: description,
		TokensIn:    tokensIn,
		TokensOut:   tokensOut,
		TotalCost:   totalCost,
		Provider:    in.AIConfig.Provider,
		Model:       in.AIConfig.Model,
		RepoRoot:    in.RepoRoot,
	}
	if rec, found, _ := e.Index.Get(taskID); found {
		meta.CreatedAt = rec.CreatedAt
		meta.IsFavorited = rec.IsFavorited
	}
	meta.LastUpdated = nowFunc()

	tin, tout, cost := tokensIn, tokensOut, totalCost
	if tin == 0 && tout == 0 {
		tin, tout = fallbackUsage(history)
	}
	if _, err := e.Index.Upsert(taskID, index.Seed{
		Description: description,
		Provider:    in.AIConfig.Provider,
		Model:       in.AIConfig.Model,
		RepoRoot:    in.RepoRoot,
		TokensIn:    &tin,
		TokensOut:   &tout,
		TotalCost:   &cost,
	}, meta.LastUpdated); err != nil && finalErr == nil {
		finalErr = errkind.New(errkind.IOError, "engine.run", err)
	}
	if err := e.Index.Save(); err != nil && finalErr == nil {
		finalErr = errkind.New(errkind.IOError, "engine.run", err)
	}
	meta.TokensIn, meta.TokensOut, meta.TotalCost = tin, tout, cost
	if err := e.Store.Save(in.RepoRoot, taskID, meta); err != nil && finalErr == nil {
		finalErr = errkind.New(errkind.IOError, "engine.run", err)
	}

	if finalErr != nil {
		events <- Event{Type: EventError, Message: finalErr.Error()}
		return
	}
	events <- Event{Type: EventCompletion, Content: lastAssistantText}
}

// renderDropped turns a dropped message span into plain text for the
// summarization prompt (§4.F step 3 fallback path).
func renderDropped(dropped []llm.Message) string {
	var out string
	for _, m := range dropped {
		out += m.Role + ": " + m.ContentString() + "\n"
	}
	return out
}

// fallbackUsage approximates tokens_in/tokens_out from the aggregate byte
// count of the content of every message in the task's history (earlier
// turns included), split in half, per spec.md §9's Open
// Question (preferred over this whenever the adapter reports real usage).
func fallbackUsage(history []store.Message) (int64, int64) {
	var total int64
	for _, m := range history {
		total += int64(len(m.Content))
	}
	half := total / 2
	return half, total - half
}

type iterationBudgetExhaustedErr string

func (e iterationBudgetExhaustedErr) Error() string { return string(e) }

const errIterationBudgetExhausted = iterationBudgetExhaustedErr("iteration budget exhausted")
