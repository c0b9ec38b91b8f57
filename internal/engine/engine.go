package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relayagent/agentd/internal/coordinator"
	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/index"
	"github.com/relayagent/agentd/internal/llm"
	"github.com/relayagent/agentd/internal/store"
	"github.com/relayagent/agentd/internal/telemetry"
)

const (
	defaultEventBufferSize = 64
	defaultToolTimeout     = 30 * time.Second
	descriptionMaxLen      = 100
	attemptCompletionTool  = "attempt_completion"
)

// AdapterResolver looks up the configured Model Adapter for a provider
// name (§4.H: adapters are external, injected rather than hard-wired).
type AdapterResolver func(provider string) (llm.Adapter, bool)

// Engine is the Task Engine (§4.G). One Engine instance serves any number
// of tasks; concurrent runs against the same task_id are rejected with
// Busy.
type Engine struct {
	Registry *coordinator.Registry
	Store    *store.Store
	Index    *index.Index
	Adapters AdapterResolver
	Tracer   telemetry.Tracer

	EventBufferSize int
	ToolTimeout     time.Duration

	mu   sync.Mutex
	busy map[string]bool

	checkpointMu    sync.Mutex
	taskCheckpoints map[string]*taskCheckpoints
}

// New constructs an Engine. reg/st/idx/adapters must be non-nil.
func New(reg *coordinator.Registry, st *store.Store, idx *index.Index, adapters AdapterResolver) *Engine {
	return &Engine{
		Registry:        reg,
		Store:           st,
		Index:           idx,
		Adapters:        adapters,
		Tracer:          telemetry.NewTracer(),
		busy:            make(map[string]bool),
		taskCheckpoints: make(map[string]*taskCheckpoints),
	}
}

func (e *Engine) eventBufferSize() int {
	if e.EventBufferSize > 0 {
		return e.EventBufferSize
	}
	return defaultEventBufferSize
}

func (e *Engine) toolTimeout() time.Duration {
	if e.ToolTimeout > 0 {
		return e.ToolTimeout
	}
	return defaultToolTimeout
}

func (e *Engine) tryLock(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy[taskID] {
		return false
	}
	e.busy[taskID] = true
	return true
}

func (e *Engine) unlock(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.busy, taskID)
}

// RunInput carries the arguments to run() (§4.G).
type RunInput struct {
	UserInput string
	RepoRoot  string
	TaskID    string // optional; empty starts a new task
	AIConfig  llm.AIConfig
}

// Run starts (or resumes) a task and returns the event stream (§4.G). The
// channel is closed once a terminal event (completion or error) has been
// sent. Run itself only fails synchronously for preconditions that can be
// checked before any work starts: an already-running task_id (Busy) or an
// unconfigured provider.
func (e *Engine) Run(parentCtx context.Context, in RunInput) (<-chan Event, error) {
	lockKey := in.TaskID
	if lockKey != "" {
		if !e.tryLock(lockKey) {
			return nil, errkind.New(errkind.Busy, "engine.run", fmt.Errorf("task %s is already running", lockKey))
		}
	}

	adapter, ok := e.Adapters(in.AIConfig.Provider)
	if !ok {
		if lockKey != "" {
			e.unlock(lockKey)
		}
		return nil, errkind.New(errkind.InvalidParameters, "engine.run", fmt.Errorf("unknown provider: %q", in.AIConfig.Provider))
	}

	events := make(chan Event, e.eventBufferSize())
	go e.runLoop(parentCtx, in, adapter, lockKey, events)
	return events, nil
}
