package tools

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"unicode/utf8"

	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/pathguard"
	"github.com/relayagent/agentd/internal/toolapi"
	"golang.org/x/text/encoding/charmap"
)

const defaultMaxReadSize = 100 * 1024 // 100KB

// ReadFile implements the read_file tool (§4.B).
type ReadFile struct{}

func (ReadFile) Spec() toolapi.Spec {
	return toolapi.Spec{
		Name:        "read_file",
		Description: "Reads a file's contents, truncating to max_size bytes if larger.",
		Parameters: []toolapi.Parameter{
			{Name: "file_path", Type: toolapi.TypeString, Required: true, Description: "Path relative to the repository root"},
			{Name: "max_size", Type: toolapi.TypeInteger, Required: false, Description: "Maximum bytes to read (default 100KB)"},
		},
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {"type": "string", "description": "Path relative to the repository root"},
				"max_size": {"type": "integer", "description": "Maximum bytes to read (default 100KB)"}
			},
			"required": ["file_path"]
		}`),
	}
}

func (ReadFile) ReadOnly() bool { return true }

type readFileParams struct {
	FilePath string `json:"file_path"`
	MaxSize  int    `json:"max_size"`
}

func (ReadFile) Execute(ctx context.Context, raw json.RawMessage, hctx *toolapi.Context) toolapi.Result {
	params, err := parseParams[readFileParams](raw, "read_file")
	if err != nil {
		return toolapi.Result{Success: false, Error: err.Error()}
	}
	if params.FilePath == "" {
		return errResult(errkind.New(errkind.InvalidParameters, "read_file", errRequired("file_path")))
	}
	maxSize := params.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxReadSize
	}

	abs, err := pathguard.Resolve(hctx.RepoRoot, params.FilePath)
	if err != nil {
		return errResult(err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return errResult(errkind.New(errkind.NotFound, "read_file", err))
	}
	if info.IsDir() {
		return errResult(errkind.New(errkind.InvalidParameters, "read_file", errIsDir(params.FilePath)))
	}

	f, err := os.Open(abs)
	if err != nil {
		return errResult(errkind.New(errkind.IOError, "read_file", err))
	}
	defer f.Close()

	buf := make([]byte, maxSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return errResult(errkind.New(errkind.IOError, "read_file", err))
	}
	truncated := info.Size() > int64(n)
	content := decodeContent(buf[:n])

	return toolapi.Result{
		Success: true,
		Data: map[string]any{
			"content":   content,
			"size":      info.Size(),
			"truncated": truncated,
		},
		Metadata: map[string]any{
			"bytes_read": n,
			"truncated":  truncated,
		},
	}
}

// decodeContent tries UTF-8 first, falling back to a permissive Windows-1252
// decode so arbitrary byte content still renders as readable text (§4.B).
func decodeContent(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(decoded)
}
