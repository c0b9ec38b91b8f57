package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/pathguard"
	"github.com/relayagent/agentd/internal/toolapi"
)

// WriteToFile implements the write_to_file tool (§4.B). Unlike the
// terminal-facing tool it is adapted from, this handler never waits on
// an interactive confirmation: the backend has no terminal to confirm
// against, so the Task Engine is the sole gate on whether a write runs.
type WriteToFile struct{}

func (WriteToFile) Spec() toolapi.Spec {
	return toolapi.Spec{
		Name:        "write_to_file",
		Description: "Writes content to a file, creating parent directories and overwriting any existing content.",
		Parameters: []toolapi.Parameter{
			{Name: "file_path", Type: toolapi.TypeString, Required: true},
			{Name: "content", Type: toolapi.TypeString, Required: true},
		},
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {"type": "string"},
				"content": {"type": "string"}
			},
			"required": ["file_path", "content"]
		}`),
	}
}

func (WriteToFile) ReadOnly() bool { return false }

type writeToFileParams struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

func (WriteToFile) Execute(ctx context.Context, raw json.RawMessage, hctx *toolapi.Context) toolapi.Result {
	params, err := parseParams[writeToFileParams](raw, "write_to_file")
	if err != nil {
		return errResult(err)
	}
	if params.FilePath == "" {
		return errResult(errkind.New(errkind.InvalidParameters, "write_to_file", errRequired("file_path")))
	}

	abs, err := pathguard.Resolve(hctx.RepoRoot, params.FilePath)
	if err != nil {
		return errResult(err)
	}

	existed := false
	if _, statErr := os.Stat(abs); statErr == nil {
		existed = true
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errResult(errkind.New(errkind.IOError, "write_to_file", err))
	}

	tmp := abs + ".tmp"
	if err := os.WriteFile(tmp, []byte(params.Content), 0o644); err != nil {
		return errResult(errkind.New(errkind.IOError, "write_to_file", err))
	}
	if err := os.Rename(tmp, abs); err != nil {
		os.Remove(tmp)
		return errResult(errkind.New(errkind.IOError, "write_to_file", err))
	}

	return toolapi.Result{
		Success: true,
		Data: map[string]any{
			"file_path": params.FilePath,
			"bytes":     len(params.Content),
			"created":   !existed,
		},
		Metadata: map[string]any{"bytes": len(params.Content)},
	}
}
