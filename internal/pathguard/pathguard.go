// Package pathguard resolves user-supplied paths inside a repository root
// and rejects any path that escapes it, per §4.A of the design spec.
package pathguard

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/relayagent/agentd/internal/errkind"
)

// Resolve normalizes userPath relative to repoRoot and returns its canonical
// absolute form. Empty, ".", "/", and "./" all mean the repo root itself. A
// leading "/" or "./" is stripped before joining. Symlinks are evaluated
// before the containment check, and any canonical path that is not a
// descendant of the canonical repoRoot fails with errkind.InvalidPath.
func Resolve(repoRoot, userPath string) (string, error) {
	canonRoot, err := filepath.EvalSymlinks(repoRoot)
	if err != nil {
		return "", errkind.New(errkind.InvalidPath, "resolve repo root", err)
	}
	canonRoot = filepath.Clean(canonRoot)

	normalized := normalize(userPath)

	joined := filepath.Join(canonRoot, normalized)
	joined = filepath.Clean(joined)

	// EvalSymlinks requires the path to exist; walk up to the first
	// existing ancestor so new (not-yet-created) paths still resolve.
	canonJoined, err := evalExistingPrefix(joined)
	if err != nil {
		return "", errkind.New(errkind.InvalidPath, "resolve path", err)
	}

	if !isDescendant(canonRoot, canonJoined) {
		return "", errkind.New(errkind.InvalidPath, "containment check",
			fmt.Errorf("path %q escapes repo root %q", userPath, repoRoot))
	}

	return canonJoined, nil
}

func normalize(userPath string) string {
	switch userPath {
	case "", ".", "/", "./":
		return "."
	}
	p := userPath
	for strings.HasPrefix(p, "/") || strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
		p = strings.TrimPrefix(p, "/")
	}
	if p == "" {
		return "."
	}
	return p
}

// evalExistingPrefix resolves symlinks along path, falling back to the
// nearest existing ancestor for components that don't exist yet (e.g. a
// write_to_file target whose parent directories haven't been created).
func evalExistingPrefix(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return filepath.Clean(resolved), nil
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == path {
		// Reached the filesystem root without finding an existing ancestor.
		return filepath.Clean(path), nil
	}
	resolvedDir, err := evalExistingPrefix(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}

func isDescendant(root, candidate string) bool {
	if candidate == root {
		return true
	}
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
