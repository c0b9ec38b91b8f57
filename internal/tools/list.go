package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/relayagent/agentd/internal/pathguard"
	"github.com/relayagent/agentd/internal/toolapi"
)

const (
	defaultMaxDepth   = 10
	defaultMaxResults = 1000
)

// ListFiles implements the list_files tool (§4.B). Caching (3-minute TTL,
// in the LRU of 100 entries shared with search_files) is applied by the
// Tool Coordinator, not here.
type ListFiles struct{}

func (ListFiles) Spec() toolapi.Spec {
	return toolapi.Spec{
		Name:        "list_files",
		Description: "Enumerates entries under a path, optionally recursive.",
		Parameters: []toolapi.Parameter{
			{Name: "path", Type: toolapi.TypeString, Required: true},
			{Name: "recursive", Type: toolapi.TypeBoolean, Required: false},
			{Name: "max_depth", Type: toolapi.TypeInteger, Required: false},
			{Name: "max_results", Type: toolapi.TypeInteger, Required: false},
		},
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"recursive": {"type": "boolean"},
				"max_depth": {"type": "integer"},
				"max_results": {"type": "integer"}
			},
			"required": ["path"]
		}`),
	}
}

func (ListFiles) ReadOnly() bool { return true }

type listFilesParams struct {
	Path       string `json:"path"`
	Recursive  bool   `json:"recursive"`
	MaxDepth   int    `json:"max_depth"`
	MaxResults int    `json:"max_results"`
}

type entryInfo struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

func (ListFiles) Execute(ctx context.Context, raw json.RawMessage, hctx *toolapi.Context) toolapi.Result {
	params, err := parseParams[listFilesParams](raw, "list_files")
	if err != nil {
		return errResult(err)
	}
	maxDepth := params.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	root, err := pathguard.Resolve(hctx.RepoRoot, params.Path)
	if err != nil {
		return errResult(err)
	}
	repoCanon, err := pathguard.Resolve(hctx.RepoRoot, "")
	if err != nil {
		return errResult(err)
	}
	rootDepth := depthOf(repoCanon, root)

	var entries []entryInfo
	truncated := false

	var walk func(dir string) error
	walk = func(dir string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		des, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		sort.Slice(des, func(i, j int) bool { return des[i].Name() < des[j].Name() })

		for _, de := range des {
			if len(entries) >= maxResults {
				truncated = true
				return nil
			}
			full := filepath.Join(dir, de.Name())
			info, infoErr := de.Info()
			size := int64(0)
			if infoErr == nil {
				size = info.Size()
			}
			entries = append(entries, entryInfo{Name: relPath(repoCanon, full), IsDir: de.IsDir(), Size: size})

			if de.IsDir() {
				if shouldSkipDir(de.Name()) {
					continue
				}
				if params.Recursive && depthOf(repoCanon, full)-rootDepth < maxDepth {
					if err := walk(full); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return errResult(err)
	}

	return toolapi.Result{
		Success: true,
		Data:    map[string]any{"entries": entries},
		Metadata: map[string]any{
			"count":     len(entries),
			"truncated": truncated,
		},
	}
}

func depthOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
