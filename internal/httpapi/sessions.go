package httpapi

import (
	"net/http"
	"strconv"

	"github.com/relayagent/agentd/internal/engine"
	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/index"
)

// listResponse is the body of GET /sessions/list (spec.md §6).
type listResponse struct {
	Tasks       []taskSummary `json:"tasks"`
	TotalCount  int           `json:"total_count"`
	TotalTokens int64         `json:"total_tokens"`
	TotalCost   float64       `json:"total_cost"`
}

type taskSummary struct {
	TaskID      string  `json:"task_id"`
	Description string  `json:"description"`
	CreatedAt   float64 `json:"created_at"`
	LastUpdated float64 `json:"last_updated"`
	TokensIn    int64   `json:"tokens_in"`
	TokensOut   int64   `json:"tokens_out"`
	TotalCost   float64 `json:"total_cost"`
	SizeBytes   int64   `json:"size_bytes"`
	IsFavorited bool    `json:"is_favorited"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
}

// handleList answers GET /sessions/list. total_count/total_tokens/
// total_cost are totals over the returned (filtered) task set, not the
// repo's full history — the front-end needs the cost of what it's
// looking at, and can call again unfiltered for repo-wide totals.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	repoRoot := r.URL.Query().Get("repository_path")
	if repoRoot == "" {
		writeError(w, http.StatusBadRequest, "repository_path is required")
		return
	}

	sortBy := index.SortNewest
	if v := r.URL.Query().Get("sort_by"); v != "" {
		sortBy = index.SortBy(v)
	}
	favoritesOnly := r.URL.Query().Get("favorites_only") == "true"
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	query := r.URL.Query().Get("search_query")

	idx := s.engineFor(repoRoot).Index
	recs, err := idx.Search(query, favoritesOnly, sortBy, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := listResponse{Tasks: make([]taskSummary, 0, len(recs))}
	for _, rec := range recs {
		resp.Tasks = append(resp.Tasks, taskSummary{
			TaskID: rec.TaskID, Description: rec.Description,
			CreatedAt: rec.CreatedAt, LastUpdated: rec.LastUpdated,
			TokensIn: rec.TokensIn, TokensOut: rec.TokensOut,
			TotalCost: rec.TotalCost, SizeBytes: rec.SizeBytes,
			IsFavorited: rec.IsFavorited, Provider: rec.Provider, Model: rec.Model,
		})
		resp.TotalCount++
		resp.TotalTokens += rec.TokensIn + rec.TokensOut
		resp.TotalCost += rec.TotalCost
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

// loadResponse is the body of GET /sessions/load/{task_id}.
type loadResponse struct {
	TaskID       string  `json:"task_id"`
	Task         string  `json:"task"`
	CreatedAt    float64 `json:"created_at"`
	LastUpdated  float64 `json:"last_updated"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Messages     any     `json:"messages"`
	MessageCount int     `json:"message_count"`
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	repoRoot := r.URL.Query().Get("repository_path")
	if repoRoot == "" {
		writeError(w, http.StatusBadRequest, "repository_path is required")
		return
	}

	e := s.engineFor(repoRoot)
	rec, found, err := e.Index.Get(taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "task not found: "+taskID)
		return
	}

	msgs, err := e.Store.Load(repoRoot, taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, loadResponse{
		TaskID: rec.TaskID, Task: rec.Description,
		CreatedAt: rec.CreatedAt, LastUpdated: rec.LastUpdated,
		Provider: rec.Provider, Model: rec.Model,
		Messages: msgs, MessageCount: len(msgs),
	})
}

type repoPathBody struct {
	RepositoryPath string `json:"repository_path"`
}

type toggleFavoriteResponse struct {
	Success     bool `json:"success"`
	IsFavorited bool `json:"is_favorited"`
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	var body repoPathBody
	_ = decodeJSONBody(r, &body)
	if body.RepositoryPath == "" {
		writeError(w, http.StatusBadRequest, "repository_path is required")
		return
	}

	idx := s.engineFor(body.RepositoryPath).Index
	isFav, err := idx.ToggleFavorite(taskID)
	if err != nil {
		if errkind.Of(err, errkind.NotFound) {
			writeError(w, http.StatusNotFound, "task not found: "+taskID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := idx.Save(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, toggleFavoriteResponse{Success: true, IsFavorited: isFav})
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleDelete removes a task from both the Index and the Conversation
// Store (S6: delete is atomic across both — spec.md §8).
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	var body repoPathBody
	_ = decodeJSONBody(r, &body)
	if body.RepositoryPath == "" {
		writeError(w, http.StatusBadRequest, "repository_path is required")
		return
	}

	e := s.engineFor(body.RepositoryPath)
	if err := e.Index.Delete(taskID); err != nil {
		if errkind.Of(err, errkind.NotFound) {
			writeError(w, http.StatusNotFound, "task not found: "+taskID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := e.Index.Save(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := e.Store.Delete(body.RepositoryPath, taskID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, deleteResponse{Success: true, Message: "task deleted"})
}

// checkpointsResponse is the body of GET /sessions/checkpoints/{task_id}.
type checkpointsResponse struct {
	Checkpoints []engine.CheckpointItem `json:"checkpoints"`
}

// handleCheckpoints lists the checkpoints recorded for a task so far
// (§11: one checkpoint per user turn, in memory for the life of the
// Engine that ran them).
func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	repoRoot := r.URL.Query().Get("repository_path")
	if repoRoot == "" {
		writeError(w, http.StatusBadRequest, "repository_path is required")
		return
	}

	e := s.engineFor(repoRoot)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, checkpointsResponse{Checkpoints: e.Checkpoints(taskID)})
}

type rewindRequest struct {
	RepositoryPath string `json:"repository_path"`
	Turn           int    `json:"turn"`
	Mode           string `json:"mode"` // "conversation" | "code" | "all"
}

type rewindResponse struct {
	Success bool `json:"success"`
	Turn    int  `json:"turn"`
}

// handleRewind restores a task to an earlier checkpoint (§11), undoing
// either the conversation, the working-copy files, or both.
func (s *Server) handleRewind(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	var body rewindRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.RepositoryPath == "" {
		writeError(w, http.StatusBadRequest, "repository_path is required")
		return
	}
	if body.Turn < 1 {
		writeError(w, http.StatusBadRequest, "turn must be >= 1")
		return
	}

	var mode engine.RewindMode
	switch body.Mode {
	case "", "all":
		mode = engine.RewindAll
	case "conversation":
		mode = engine.RewindConversation
	case "code":
		mode = engine.RewindCode
	default:
		writeError(w, http.StatusBadRequest, "mode must be one of: conversation, code, all")
		return
	}

	e := s.engineFor(body.RepositoryPath)
	if err := e.Rewind(body.RepositoryPath, taskID, body.Turn, mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, rewindResponse{Success: true, Turn: body.Turn})
}
