// Package coordinator implements the Tool Coordinator (§4.C): a registry
// mapping tool name to handler, schema validation, dispatch with
// bounded concurrency for batches of side-effect-free calls, and a
// second front door onto the same registry over the Model Context
// Protocol.
package coordinator

import (
	"sort"
	"sync"

	"github.com/relayagent/agentd/internal/toolapi"
	"golang.org/x/time/rate"
)

// dispatchRateLimit and dispatchBurst cap the rate at which Execute lets
// handlers into the filesystem layer, independent of the tool handler's
// own 30s soft deadline (§5) — a burst of tool calls from one iteration's
// tool_calls_detected batch should not all hit disk in the same instant.
const (
	dispatchRateLimit = 50 // calls/sec, steady state
	dispatchBurst     = 20
)

// Registry holds every registered tool handler and exposes the
// execute/execute_many surface the Task Engine drives (§4.C).
type Registry struct {
	mu        sync.RWMutex
	handlers  map[string]toolapi.Handler
	order     []string
	cache     *resultCache
	validator *schemaCache
	limiter   *rate.Limiter
}

// New constructs an empty registry. Handlers are injected rather than
// hard-wired so tests can substitute fakes (§4.C "must be constructible
// and injectable for tests. No hidden singletons.").
func New() *Registry {
	return &Registry{
		handlers:  make(map[string]toolapi.Handler),
		cache:     newResultCache(cacheTTL, cacheCapacity),
		validator: newSchemaCache(),
		limiter:   rate.NewLimiter(dispatchRateLimit, dispatchBurst),
	}
}

// Register adds a handler. Registering the same name twice replaces the
// prior handler but keeps its position in the stable ordering.
func (r *Registry) Register(h toolapi.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := h.Spec().Name
	if _, exists := r.handlers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.handlers[name] = h
}

// ListSpecs returns every registered ToolSpec in stable registration
// order, for inclusion in model prompts (§4.C).
func (r *Registry) ListSpecs() []toolapi.Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]toolapi.Spec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.handlers[name].Spec())
	}
	return specs
}

// Names returns the registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	names = append(names, r.order...)
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (toolapi.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}
