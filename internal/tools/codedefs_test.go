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

func TestListCodeDefinitionsGo(t *testing.T) {
	root := t.TempDir()
	src := "package foo\n\ntype Thing struct{}\n\nfunc New() *Thing { return &Thing{} }\n\nfunc (t *Thing) Do() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo.go"), []byte(src), 0o644))

	res := ListCodeDefinitions{}.Execute(context.Background(),
		json.RawMessage(`{"file_path":"foo.go"}`), &toolapi.Context{RepoRoot: root})

	require.True(t, res.Success)
	data := res.Data.(map[string]any)
	defs := data["definitions"].([]definitionEntry)
	require.Len(t, defs, 3)
	require.Equal(t, "type", defs[0].Kind)
	require.Equal(t, "Thing", defs[0].Name)
	require.Equal(t, "function", defs[1].Kind)
	require.Equal(t, "New", defs[1].Name)
	require.Equal(t, "method", defs[2].Kind)
	require.Equal(t, "Do", defs[2].Name)
}

func TestListCodeDefinitionsPython(t *testing.T) {
	root := t.TempDir()
	src := "class Foo:\n    def bar(self):\n        pass\n\ndef standalone():\n    pass\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo.py"), []byte(src), 0o644))

	res := ListCodeDefinitions{}.Execute(context.Background(),
		json.RawMessage(`{"file_path":"foo.py"}`), &toolapi.Context{RepoRoot: root})

	require.True(t, res.Success)
	data := res.Data.(map[string]any)
	defs := data["definitions"].([]definitionEntry)
	var names []string
	for _, d := range defs {
		names = append(names, d.Name)
	}
	require.Contains(t, names, "Foo")
	require.Contains(t, names, "standalone")
}

func TestListCodeDefinitionsUnsupportedExtension(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("plain text"), 0o644))

	res := ListCodeDefinitions{}.Execute(context.Background(),
		json.RawMessage(`{"file_path":"notes.txt"}`), &toolapi.Context{RepoRoot: root})

	require.True(t, res.Success)
	data := res.Data.(map[string]any)
	require.Empty(t, data["definitions"])
}
