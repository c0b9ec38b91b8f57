package httpapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relayagent/agentd/internal/coordinator"
	"github.com/relayagent/agentd/internal/llm"
	"github.com/relayagent/agentd/internal/store"
	"github.com/relayagent/agentd/internal/tools"
	"github.com/stretchr/testify/require"
)

func text(s string) *string { return &s }

func newTestServer(t *testing.T, adapter llm.Adapter) *Server {
	t.Helper()
	reg := coordinator.New()
	reg.Register(tools.ReadFile{})
	reg.Register(tools.ListFiles{})
	st := store.New()
	return NewServer(reg, st, func(provider string) (llm.Adapter, bool) {
		if provider != "" && provider != "stub" {
			return nil, false
		}
		return adapter, true
	}, llm.AIConfig{Provider: "stub", Model: "test-model", MaxIterations: 10, MaxContextTokens: 100000})
}

func readSSEEvents(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &m))
		out = append(out, m)
	}
	return out
}

func TestChatStreamsCompletionEvent(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, "README.md"), []byte("hello"), 0o644))

	adapter := &llm.StubAdapter{Responses: []llm.Response{
		{Message: llm.Message{Role: "assistant", Content: text("done")}, Usage: llm.Usage{TokensIn: 5, TokensOut: 5}},
	}}
	s := newTestServer(t, adapter)

	body, _ := json.Marshal(chatRequest{Message: "say hi", RepositoryPath: repo})
	req := httptest.NewRequest(http.MethodPost, "/chat/smart-chat-v2", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	events := readSSEEvents(t, rec.Body.String())
	require.NotEmpty(t, events)
	require.Equal(t, "task_started", events[0]["type"])
	require.Equal(t, "completion", events[len(events)-1]["type"])
}

func TestChatRejectsMissingFields(t *testing.T) {
	s := newTestServer(t, &llm.StubAdapter{})
	req := httptest.NewRequest(http.MethodPost, "/chat/smart-chat-v2", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func runOneChat(t *testing.T, s *Server, repo, message, taskID string) string {
	t.Helper()
	body, _ := json.Marshal(chatRequest{Message: message, RepositoryPath: repo, TaskID: taskID})
	req := httptest.NewRequest(http.MethodPost, "/chat/smart-chat-v2", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	events := readSSEEvents(t, rec.Body.String())
	require.NotEmpty(t, events)
	taskStarted := events[0]
	return taskStarted["task_id"].(string)
}

func TestSessionsListLoadFavoriteDeleteLifecycle(t *testing.T) {
	repo := t.TempDir()
	adapter := &llm.StubAdapter{Responses: []llm.Response{
		{Message: llm.Message{Role: "assistant", Content: text("done")}, Usage: llm.Usage{TokensIn: 1, TokensOut: 1}},
	}}
	s := newTestServer(t, adapter)
	taskID := runOneChat(t, s, repo, "first task", "")

	// list
	req := httptest.NewRequest(http.MethodGet, "/sessions/list?repository_path="+repo, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Equal(t, 1, listResp.TotalCount)
	require.Equal(t, taskID, listResp.Tasks[0].TaskID)

	// load
	req = httptest.NewRequest(http.MethodGet, "/sessions/load/"+taskID+"?repository_path="+repo, nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var loadResp loadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loadResp))
	require.Equal(t, taskID, loadResp.TaskID)
	require.True(t, loadResp.MessageCount > 0)

	// toggle favorite
	favBody, _ := json.Marshal(repoPathBody{RepositoryPath: repo})
	req = httptest.NewRequest(http.MethodPost, "/sessions/toggle-favorite/"+taskID, bytes.NewReader(favBody))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var favResp toggleFavoriteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &favResp))
	require.True(t, favResp.IsFavorited)

	// delete
	delBody, _ := json.Marshal(repoPathBody{RepositoryPath: repo})
	req = httptest.NewRequest(http.MethodPost, "/sessions/delete/"+taskID, bytes.NewReader(delBody))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// S6: subsequent load is not-found, list omits it
	req = httptest.NewRequest(http.MethodGet, "/sessions/load/"+taskID+"?repository_path="+repo, nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/sessions/list?repository_path="+repo, nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Equal(t, 0, listResp.TotalCount)
}

func TestCheckpointsAndRewindRoundTrip(t *testing.T) {
	repo := t.TempDir()
	notes := filepath.Join(repo, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("original"), 0o644))

	reg := coordinator.New()
	reg.Register(tools.ReadFile{})
	reg.Register(tools.WriteToFile{})
	adapter := &llm.StubAdapter{Responses: []llm.Response{
		{Message: llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{{
			ID: "call-1", Type: "function",
			Function: llm.FunctionCall{Name: "write_to_file", Arguments: `{"file_path":"notes.txt","content":"overwritten"}`},
		}}}},
		{Message: llm.Message{Role: "assistant", Content: text("updated")}},
	}}
	s := NewServer(reg, store.New(), func(provider string) (llm.Adapter, bool) {
		if provider != "" && provider != "stub" {
			return nil, false
		}
		return adapter, true
	}, llm.AIConfig{Provider: "stub", Model: "test-model", MaxIterations: 10, MaxContextTokens: 100000})

	taskID := runOneChat(t, s, repo, "overwrite the notes", "")

	data, err := os.ReadFile(notes)
	require.NoError(t, err)
	require.Equal(t, "overwritten", string(data))

	req := httptest.NewRequest(http.MethodGet, "/sessions/checkpoints/"+taskID+"?repository_path="+repo, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var cpResp checkpointsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cpResp))
	require.Len(t, cpResp.Checkpoints, 1)
	require.Equal(t, 1, cpResp.Checkpoints[0].Turn)

	rewindBody, _ := json.Marshal(rewindRequest{RepositoryPath: repo, Turn: 1, Mode: "code"})
	req = httptest.NewRequest(http.MethodPost, "/sessions/rewind/"+taskID, bytes.NewReader(rewindBody))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	data, err = os.ReadFile(notes)
	require.NoError(t, err)
	require.Equal(t, "original", string(data))
}
