package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/pathguard"
	"github.com/relayagent/agentd/internal/toolapi"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSearchMaxResults = 50
	searchMaxFileBytes      = 1 << 20 // 1MB
	searchMaxFilesScanned   = 100
	searchWorkerDegree      = 4
	searchContextLines      = 2
)

// SearchFiles implements the search_files tool (§4.B): a regex content
// search bounded by a degree-4 worker pool, a 100-file scan cap, and a
// 1MB per-file skip threshold. Caching (5-minute LRU, 100 entries) is
// applied by the Tool Coordinator.
type SearchFiles struct{}

func (SearchFiles) Spec() toolapi.Spec {
	return toolapi.Spec{
		Name:        "search_files",
		Description: "Searches file contents for a regular expression, returning matching lines with context.",
		Parameters: []toolapi.Parameter{
			{Name: "pattern", Type: toolapi.TypeString, Required: true},
			{Name: "path", Type: toolapi.TypeString, Required: false},
			{Name: "file_pattern", Type: toolapi.TypeString, Required: false},
			{Name: "case_sensitive", Type: toolapi.TypeBoolean, Required: false},
			{Name: "max_results", Type: toolapi.TypeInteger, Required: false},
		},
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern": {"type": "string"},
				"path": {"type": "string"},
				"file_pattern": {"type": "string"},
				"case_sensitive": {"type": "boolean"},
				"max_results": {"type": "integer"}
			},
			"required": ["pattern"]
		}`),
	}
}

func (SearchFiles) ReadOnly() bool { return true }

type searchFilesParams struct {
	Pattern       string `json:"pattern"`
	Path          string `json:"path"`
	FilePattern   string `json:"file_pattern"`
	CaseSensitive bool   `json:"case_sensitive"`
	MaxResults    int    `json:"max_results"`
}

type searchMatch struct {
	File       string `json:"file"`
	LineNumber int    `json:"line_number"`
	Line       string `json:"line"`
	Context    string `json:"context,omitempty"`
}

func (SearchFiles) Execute(ctx context.Context, raw json.RawMessage, hctx *toolapi.Context) toolapi.Result {
	params, err := parseParams[searchFilesParams](raw, "search_files")
	if err != nil {
		return errResult(err)
	}
	if params.Pattern == "" {
		return errResult(errkind.New(errkind.InvalidParameters, "search_files", errRequired("pattern")))
	}

	pattern := params.Pattern
	if !params.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return errResult(errkind.New(errkind.InvalidParameters, "search_files", err))
	}

	searchDir, err := pathguard.Resolve(hctx.RepoRoot, params.Path)
	if err != nil {
		return errResult(err)
	}
	repoCanon, err := pathguard.Resolve(hctx.RepoRoot, "")
	if err != nil {
		return errResult(err)
	}

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = defaultSearchMaxResults
	}

	var candidates []string
	err = filepath.WalkDir(searchDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if len(candidates) >= searchMaxFilesScanned {
			return nil
		}
		if params.FilePattern != "" {
			if ok, _ := filepath.Match(params.FilePattern, d.Name()); !ok {
				return nil
			}
		}
		info, statErr := d.Info()
		if statErr != nil || info.Size() > searchMaxFileBytes {
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	if err != nil {
		return errResult(errkind.New(errkind.IOError, "search_files", err))
	}
	if len(candidates) > searchMaxFilesScanned {
		candidates = candidates[:searchMaxFilesScanned]
	}

	var mu sync.Mutex
	var matches []searchMatch
	totalMatches := 0
	filesScanned := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchWorkerDegree)

	for _, path := range candidates {
		path := path
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if isBinaryFile(path) {
				return nil
			}
			found := scanFile(path, re)

			mu.Lock()
			defer mu.Unlock()
			filesScanned++
			rel := relPath(repoCanon, path)
			for _, m := range found {
				totalMatches++
				if len(matches) < maxResults {
					m.File = rel
					matches = append(matches, m)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && ctx.Err() != nil {
		return errResult(errkind.New(errkind.Cancelled, "search_files", err))
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].File != matches[j].File {
			return matches[i].File < matches[j].File
		}
		return matches[i].LineNumber < matches[j].LineNumber
	})

	return toolapi.Result{
		Success: true,
		Data:    map[string]any{"matches": matches},
		Metadata: map[string]any{
			"total_matches": totalMatches,
			"files_scanned": filesScanned,
			"truncated":     totalMatches > len(matches),
		},
	}
}

func scanFile(path string, re *regexp.Regexp) []searchMatch {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	var out []searchMatch
	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		start := i - searchContextLines
		if start < 0 {
			start = 0
		}
		end := i + searchContextLines + 1
		if end > len(lines) {
			end = len(lines)
		}
		out = append(out, searchMatch{
			LineNumber: i + 1,
			Line:       line,
			Context:    strings.Join(lines[start:end], "\n"),
		})
	}
	return out
}
