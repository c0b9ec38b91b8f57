// Package engine implements the Task Engine (§4.G): the run() loop that
// drives one task's conversation through the Context Manager, Model
// Adapter, and Tool Coordinator, emitting an ordered event stream.
package engine

import "github.com/relayagent/agentd/internal/toolapi"

// EventType tags the variant of an emitted Event (§6 SSE event schema).
type EventType string

const (
	EventTaskStarted           EventType = "task_started"
	EventAPIRequestStarted     EventType = "api_request_started"
	EventAPIResponse           EventType = "api_response"
	EventToolCallsDetected     EventType = "tool_calls_detected"
	EventToolExecutionStarted  EventType = "tool_execution_started"
	EventToolExecutionComplete EventType = "tool_execution_completed"
	EventCompletion            EventType = "completion"
	EventError                 EventType = "error"
)

// ToolCallSummary is the wire-shape of one entry in tool_calls_detected.
type ToolCallSummary struct {
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
}

// Event is one entry in the stream run() produces. Only the fields
// relevant to Type are populated.
type Event struct {
	Type EventType `json:"type"`

	TaskID string `json:"task_id,omitempty"`
	IsNew  bool   `json:"is_new,omitempty"`

	Iteration    int `json:"iteration,omitempty"`
	MessageCount int `json:"message_count,omitempty"`

	Content string `json:"content,omitempty"`

	ToolCalls []ToolCallSummary `json:"tool_calls,omitempty"`
	ToolName  string            `json:"tool_name,omitempty"`
	Result    *toolapi.Result   `json:"result,omitempty"`

	Message string `json:"message,omitempty"`
}
