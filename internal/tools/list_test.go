package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/relayagent/agentd/internal/toolapi"
	"github.com/stretchr/testify/require"
)

func setupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "nested"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "nested", "deep.go"), []byte("package nested"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "pkg", "index.js"), []byte("x"), 0o644))
	return root
}

func TestListFilesNonRecursiveSkipsIgnoredDirs(t *testing.T) {
	root := setupTree(t)
	res := ListFiles{}.Execute(context.Background(),
		json.RawMessage(`{"path":"."}`), &toolapi.Context{RepoRoot: root})

	require.True(t, res.Success)
	data := res.Data.(map[string]any)
	entries := data["entries"].([]entryInfo)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	require.Contains(t, names, "README.md")
	require.Contains(t, names, "src")
	require.Contains(t, names, "node_modules")
	require.NotContains(t, names, "src/main.go")
}

func TestListFilesRecursiveDescendsButSkipsIgnored(t *testing.T) {
	root := setupTree(t)
	res := ListFiles{}.Execute(context.Background(),
		json.RawMessage(`{"path":".","recursive":true}`), &toolapi.Context{RepoRoot: root})

	require.True(t, res.Success)
	data := res.Data.(map[string]any)
	entries := data["entries"].([]entryInfo)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	require.Contains(t, names, "src/main.go")
	require.Contains(t, names, "src/nested/deep.go")
	require.NotContains(t, names, "node_modules/pkg/index.js")
}

func TestListFilesMaxResultsTruncates(t *testing.T) {
	root := setupTree(t)
	res := ListFiles{}.Execute(context.Background(),
		json.RawMessage(`{"path":".","recursive":true,"max_results":1}`), &toolapi.Context{RepoRoot: root})

	require.True(t, res.Success)
	meta := res.Metadata
	require.Equal(t, true, meta["truncated"])
}

func TestDepthOfCountsPathSegments(t *testing.T) {
	root := "/repo"
	require.Equal(t, 0, depthOf(root, "/repo"))
	require.Equal(t, 1, depthOf(root, "/repo/a"))
	require.Equal(t, 2, depthOf(root, "/repo/a/b"))
	require.Equal(t, 3, depthOf(root, "/repo/a/b/c"))
}
