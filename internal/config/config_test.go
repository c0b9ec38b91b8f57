package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
listen_addr = ":9090"

[ai]
provider = "openai"
model = "gpt-4o-mini"
max_iterations = 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.ListenAddr)
	require.Equal(t, "openai", cfg.AI.Provider)
	require.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	require.Equal(t, 10, cfg.AI.MaxIterations)
}

func TestEnvOverridesWinOverTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[ai]
provider = "openai"
`), 0o644))

	t.Setenv("AGENTD_PROVIDER", "anthropic")
	t.Setenv("AGENTD_MAX_ITERATIONS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "anthropic", cfg.AI.Provider)
	require.Equal(t, 5, cfg.AI.MaxIterations)
}

func TestWatchPicksUpFileEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[ai]
provider = "openai"
`), 0o644))

	w, err := Watch(path, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`[ai]
provider = "anthropic"
`), 0o644))

	select {
	case cfg := <-w.C:
		require.Equal(t, "anthropic", cfg.AI.Provider)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
