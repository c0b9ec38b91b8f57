package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/relayagent/agentd/internal/engine"
	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/llm"
)

// chatRequest is the body of POST /chat/smart-chat-v2 (spec.md §6). The
// ai_config fields are optional per-request overrides layered over the
// Server's configured Defaults ("Configuration passed per request or
// loaded once", spec.md §6).
type chatRequest struct {
	Message        string   `json:"message"`
	RepositoryPath string   `json:"repository_path"`
	TaskID         string   `json:"task_id,omitempty"`
	Provider       *string  `json:"provider,omitempty"`
	Model          *string  `json:"model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxTokens      *int     `json:"max_tokens,omitempty"`
	TopP           *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	MaxIterations    *int     `json:"max_iterations,omitempty"`
	MaxContextTokens *int     `json:"max_context_tokens,omitempty"`
}

func (s *Server) mergeAIConfig(req chatRequest) llm.AIConfig {
	cfg := s.Defaults
	if req.Provider != nil {
		cfg.Provider = *req.Provider
	}
	if req.Model != nil {
		cfg.Model = *req.Model
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		cfg.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		cfg.TopP = *req.TopP
	}
	if req.FrequencyPenalty != nil {
		cfg.FrequencyPenalty = *req.FrequencyPenalty
	}
	if req.PresencePenalty != nil {
		cfg.PresencePenalty = *req.PresencePenalty
	}
	if req.MaxIterations != nil {
		cfg.MaxIterations = *req.MaxIterations
	}
	if req.MaxContextTokens != nil {
		cfg.MaxContextTokens = *req.MaxContextTokens
	}
	return cfg
}

// handleChat runs or resumes a task and streams its events as SSE
// (spec.md §6, §4.G). Each engine.Event is sent as one `data:` line of
// JSON, exactly as spec.md's SSE event schema describes.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := s.Log.With("path", r.URL.Path)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request")
		return
	}
	if req.Message == "" || req.RepositoryPath == "" {
		writeError(w, http.StatusBadRequest, "message and repository_path are required")
		return
	}

	e := s.engineFor(req.RepositoryPath)
	events, err := e.Run(r.Context(), engine.RunInput{
		UserInput: req.Message,
		RepoRoot:  req.RepositoryPath,
		TaskID:    req.TaskID,
		AIConfig:  s.mergeAIConfig(req),
	})
	if err != nil {
		log.Warn("chat rejected", "error", err)
		status := statusForErr(err)
		writeError(w, status, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
	log.Info("chat stream closed", "task_id", req.TaskID)
}

func statusForErr(err error) int {
	switch {
	case errkind.Of(err, errkind.Busy):
		return http.StatusConflict
	case errkind.Of(err, errkind.InvalidParameters), errkind.Of(err, errkind.InvalidPath):
		return http.StatusBadRequest
	case errkind.Of(err, errkind.NotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
