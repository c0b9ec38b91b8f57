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

func TestReplaceInFileSingleOccurrence(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world"), 0o644))

	res := ReplaceInFile{}.Execute(context.Background(),
		json.RawMessage(`{"file_path":"a.txt","search":"world","replace":"there"}`), &toolapi.Context{RepoRoot: root})

	require.True(t, res.Success)
	b, _ := os.ReadFile(filepath.Join(root, "a.txt"))
	require.Equal(t, "hello there", string(b))
	require.Nil(t, res.Metadata["warning"])
}

func TestReplaceInFileMultipleOccurrencesReplacesAllAndWarns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("foo foo foo"), 0o644))

	res := ReplaceInFile{}.Execute(context.Background(),
		json.RawMessage(`{"file_path":"a.txt","search":"foo","replace":"bar"}`), &toolapi.Context{RepoRoot: root})

	require.True(t, res.Success)
	b, _ := os.ReadFile(filepath.Join(root, "a.txt"))
	require.Equal(t, "bar bar bar", string(b))
	require.NotEmpty(t, res.Metadata["warning"])
	require.Equal(t, 3, res.Metadata["replacements"])
}

func TestReplaceInFileAbsentSearchIsNotFound(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	res := ReplaceInFile{}.Execute(context.Background(),
		json.RawMessage(`{"file_path":"a.txt","search":"missing","replace":"x"}`), &toolapi.Context{RepoRoot: root})

	require.False(t, res.Success)
}
