// Package httpapi is the thin transport binding for the Task Engine,
// Tool Coordinator and Conversation Store: an SSE endpoint for running
// tasks and a small REST surface for listing, loading, favoriting and
// deleting them (spec.md §6). Routing is stdlib net/http + ServeMux
// (Go 1.22+ method+path patterns) — none of the example repositories
// studied carries a third-party router as a direct dependency, so no
// router library is introduced here; style is grounded on
// MimeLyc-git-sonic's pkg/server/server.go (method check, JSON
// encode/decode, *logging.Logger.With per request).
package httpapi

import (
	"net/http"
	"sync"

	"github.com/relayagent/agentd/internal/coordinator"
	"github.com/relayagent/agentd/internal/engine"
	"github.com/relayagent/agentd/internal/index"
	"github.com/relayagent/agentd/internal/llm"
	"github.com/relayagent/agentd/internal/logging"
	"github.com/relayagent/agentd/internal/store"
)

// Server wires the core subsystems to HTTP. One Server instance serves
// any number of repository roots; an Engine (and its Index) is created
// lazily per repo_root and kept for the life of the process so the
// Busy check in §4.G holds across requests.
type Server struct {
	Registry *coordinator.Registry
	Store    *store.Store
	Adapters engine.AdapterResolver
	Defaults llm.AIConfig
	Log      *logging.Logger

	mu      sync.Mutex
	engines map[string]*engine.Engine
}

// NewServer constructs a Server. reg/st/adapters must be non-nil.
func NewServer(reg *coordinator.Registry, st *store.Store, adapters engine.AdapterResolver, defaults llm.AIConfig) *Server {
	return &Server{
		Registry: reg,
		Store:    st,
		Adapters: adapters,
		Defaults: defaults,
		Log:      logging.Default(),
		engines:  make(map[string]*engine.Engine),
	}
}

// engineFor returns the long-lived Engine for repoRoot, creating it (and
// its repo-scoped Index) on first use.
func (s *Server) engineFor(repoRoot string) *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.engines[repoRoot]; ok {
		return e
	}
	e := engine.New(s.Registry, s.Store, index.New(repoRoot), s.Adapters)
	s.engines[repoRoot] = e
	return e
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/smart-chat-v2", s.handleChat)
	mux.HandleFunc("GET /sessions/list", s.handleList)
	mux.HandleFunc("GET /sessions/load/{task_id}", s.handleLoad)
	mux.HandleFunc("POST /sessions/toggle-favorite/{task_id}", s.handleToggleFavorite)
	mux.HandleFunc("POST /sessions/delete/{task_id}", s.handleDelete)
	mux.HandleFunc("GET /sessions/checkpoints/{task_id}", s.handleCheckpoints)
	mux.HandleFunc("POST /sessions/rewind/{task_id}", s.handleRewind)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]string{"status": "ok"})
}
