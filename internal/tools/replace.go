package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/pathguard"
	"github.com/relayagent/agentd/internal/toolapi"
)

// ReplaceInFile implements the replace_in_file tool (§4.B). Unlike the
// edit tool it is adapted from, which requires a unique match and fails
// on ambiguity, this handler fails only when search is entirely absent;
// when search occurs more than once it replaces every occurrence and
// flags the ambiguity as a warning rather than an error.
type ReplaceInFile struct{}

func (ReplaceInFile) Spec() toolapi.Spec {
	return toolapi.Spec{
		Name:        "replace_in_file",
		Description: "Replaces every occurrence of a search string in a file with a replacement string.",
		Parameters: []toolapi.Parameter{
			{Name: "file_path", Type: toolapi.TypeString, Required: true},
			{Name: "search", Type: toolapi.TypeString, Required: true},
			{Name: "replace", Type: toolapi.TypeString, Required: true},
		},
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {"type": "string"},
				"search": {"type": "string"},
				"replace": {"type": "string"}
			},
			"required": ["file_path", "search", "replace"]
		}`),
	}
}

func (ReplaceInFile) ReadOnly() bool { return false }

type replaceInFileParams struct {
	FilePath string `json:"file_path"`
	Search   string `json:"search"`
	Replace  string `json:"replace"`
}

func (ReplaceInFile) Execute(ctx context.Context, raw json.RawMessage, hctx *toolapi.Context) toolapi.Result {
	params, err := parseParams[replaceInFileParams](raw, "replace_in_file")
	if err != nil {
		return errResult(err)
	}
	if params.FilePath == "" {
		return errResult(errkind.New(errkind.InvalidParameters, "replace_in_file", errRequired("file_path")))
	}
	if params.Search == "" {
		return errResult(errkind.New(errkind.InvalidParameters, "replace_in_file", errRequired("search")))
	}

	abs, err := pathguard.Resolve(hctx.RepoRoot, params.FilePath)
	if err != nil {
		return errResult(err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return errResult(errkind.New(errkind.NotFound, "replace_in_file", err))
	}
	if info.IsDir() {
		return errResult(errkind.New(errkind.InvalidParameters, "replace_in_file", errIsDir(params.FilePath)))
	}

	raw2, err := os.ReadFile(abs)
	if err != nil {
		return errResult(errkind.New(errkind.IOError, "replace_in_file", err))
	}
	original := string(raw2)

	count := strings.Count(original, params.Search)
	if count == 0 {
		return errResult(errkind.New(errkind.NotFound, "replace_in_file", errSearchNotFound(params.Search)))
	}

	updated := strings.ReplaceAll(original, params.Search, params.Replace)

	tmp := abs + ".tmp"
	if err := os.WriteFile(tmp, []byte(updated), info.Mode().Perm()); err != nil {
		return errResult(errkind.New(errkind.IOError, "replace_in_file", err))
	}
	if err := os.Rename(tmp, abs); err != nil {
		os.Remove(tmp)
		return errResult(errkind.New(errkind.IOError, "replace_in_file", err))
	}

	result := toolapi.Result{
		Success: true,
		Data: map[string]any{
			"file_path":    params.FilePath,
			"replacements": count,
		},
		Metadata: map[string]any{"replacements": count},
	}
	if count > 1 {
		result.Metadata["warning"] = "search string matched more than once; all occurrences were replaced"
	}
	return result
}

func errSearchNotFound(search string) error {
	return fmt.Errorf("search string not found in file: %s", search)
}
