// Package tools implements the required tool set (§4.B): filesystem
// read/write/search, code-definition extraction, and read-only git
// metadata, each validated and path-guarded before touching disk.
package tools

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/relayagent/agentd/internal/errkind"
)

// skipDirs is the fixed ignore set list_files and search_files traversal
// skips (§4.B).
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	"dist":         true,
	"build":        true,
	".next":        true,
	".nuxt":        true,
	"coverage":     true,
	".vscode":      true,
	".idea":        true,
}

func shouldSkipDir(name string) bool {
	return skipDirs[name]
}

// parseParams unmarshals JSON tool input into a typed struct, wrapping
// failures as errkind.InvalidParameters.
func parseParams[T any](raw json.RawMessage, op string) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errkind.New(errkind.InvalidParameters, op, err)
	}
	return v, nil
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return true
	}
	for _, b := range buf[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}
