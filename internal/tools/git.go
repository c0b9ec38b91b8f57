package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/toolapi"
)

// GitStatus, GitDiff, GitLog, and GitBranch implement the read-only git
// metadata tools (§4.B). Each shells out to the git CLI scoped to the
// repository root and never mutates the working tree or index.

type GitStatus struct{}

func (GitStatus) Spec() toolapi.Spec {
	return toolapi.Spec{
		Name:        "git_status",
		Description: "Returns the working tree status (staged, unstaged, untracked files).",
		Schema:      json.RawMessage(`{"type": "object", "properties": {}}`),
	}
}

func (GitStatus) ReadOnly() bool { return true }

func (GitStatus) Execute(ctx context.Context, raw json.RawMessage, hctx *toolapi.Context) toolapi.Result {
	out, err := runGit(ctx, hctx.RepoRoot, "status", "--porcelain=v1", "--branch")
	if err != nil {
		return err.(*resultErr).result
	}
	lines := splitNonEmpty(out)
	return toolapi.Result{
		Success:  true,
		Data:     map[string]any{"entries": lines},
		Metadata: map[string]any{"count": len(lines)},
	}
}

type GitDiff struct{}

func (GitDiff) Spec() toolapi.Spec {
	return toolapi.Spec{
		Name:        "git_diff",
		Description: "Returns the diff of unstaged (or staged, with staged=true) changes.",
		Parameters: []toolapi.Parameter{
			{Name: "path", Type: toolapi.TypeString, Required: false},
			{Name: "staged", Type: toolapi.TypeBoolean, Required: false},
		},
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"staged": {"type": "boolean"}
			}
		}`),
	}
}

func (GitDiff) ReadOnly() bool { return true }

type gitDiffParams struct {
	Path   string `json:"path"`
	Staged bool   `json:"staged"`
}

func (GitDiff) Execute(ctx context.Context, raw json.RawMessage, hctx *toolapi.Context) toolapi.Result {
	params, perr := parseParams[gitDiffParams](raw, "git_diff")
	if perr != nil {
		return errResult(perr)
	}
	args := []string{"diff"}
	if params.Staged {
		args = append(args, "--cached")
	}
	if params.Path != "" {
		args = append(args, "--", params.Path)
	}
	out, err := runGit(ctx, hctx.RepoRoot, args...)
	if err != nil {
		return err.(*resultErr).result
	}
	return toolapi.Result{
		Success:  true,
		Data:     map[string]any{"diff": out},
		Metadata: map[string]any{"bytes": len(out)},
	}
}

type GitLog struct{}

func (GitLog) Spec() toolapi.Spec {
	return toolapi.Spec{
		Name:        "git_log",
		Description: "Returns recent commit history (hash, author, date, subject).",
		Parameters: []toolapi.Parameter{
			{Name: "max_count", Type: toolapi.TypeInteger, Required: false},
		},
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"max_count": {"type": "integer"}}
		}`),
	}
}

func (GitLog) ReadOnly() bool { return true }

type gitLogParams struct {
	MaxCount int `json:"max_count"`
}

const defaultGitLogCount = 20

func (GitLog) Execute(ctx context.Context, raw json.RawMessage, hctx *toolapi.Context) toolapi.Result {
	params, perr := parseParams[gitLogParams](raw, "git_log")
	if perr != nil {
		return errResult(perr)
	}
	maxCount := params.MaxCount
	if maxCount <= 0 {
		maxCount = defaultGitLogCount
	}
	out, err := runGit(ctx, hctx.RepoRoot,
		"log", "-n", strconv.Itoa(maxCount), "--pretty=format:%H%x09%an%x09%ad%x09%s", "--date=iso-strict")
	if err != nil {
		return err.(*resultErr).result
	}
	var commits []map[string]string
	for _, line := range splitNonEmpty(out) {
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) != 4 {
			continue
		}
		commits = append(commits, map[string]string{
			"hash": parts[0], "author": parts[1], "date": parts[2], "subject": parts[3],
		})
	}
	return toolapi.Result{
		Success:  true,
		Data:     map[string]any{"commits": commits},
		Metadata: map[string]any{"count": len(commits)},
	}
}

type GitBranch struct{}

func (GitBranch) Spec() toolapi.Spec {
	return toolapi.Spec{
		Name:        "git_branch",
		Description: "Returns the current branch name and a list of local branches.",
		Schema:      json.RawMessage(`{"type": "object", "properties": {}}`),
	}
}

func (GitBranch) ReadOnly() bool { return true }

func (GitBranch) Execute(ctx context.Context, raw json.RawMessage, hctx *toolapi.Context) toolapi.Result {
	current, err := runGit(ctx, hctx.RepoRoot, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return err.(*resultErr).result
	}
	list, err := runGit(ctx, hctx.RepoRoot, "branch", "--format=%(refname:short)")
	if err != nil {
		return err.(*resultErr).result
	}
	return toolapi.Result{
		Success: true,
		Data: map[string]any{
			"current":  strings.TrimSpace(current),
			"branches": splitNonEmpty(list),
		},
	}
}

// resultErr lets runGit return a fully-formed toolapi.Result through the
// standard error path without callers re-deriving error kinds.
type resultErr struct {
	result toolapi.Result
}

func (e *resultErr) Error() string { return e.result.Error }

func runGit(ctx context.Context, repoRoot string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		kind := errkind.IOError
		if ctx.Err() != nil {
			kind = errkind.Cancelled
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &resultErr{result: errResult(errkind.New(kind, "git", strErr(msg)))}
	}
	return stdout.String(), nil
}

type strErr string

func (s strErr) Error() string { return string(s) }

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

