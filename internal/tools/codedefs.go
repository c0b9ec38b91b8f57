package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/pathguard"
	"github.com/relayagent/agentd/internal/toolapi"
)

// ListCodeDefinitions implements the list_code_definitions tool (§4.B):
// a language-aware regex extraction of top-level class/function/method
// names, keyed off the file extension.
type ListCodeDefinitions struct{}

func (ListCodeDefinitions) Spec() toolapi.Spec {
	return toolapi.Spec{
		Name:        "list_code_definitions",
		Description: "Extracts top-level class, function, and method names from a source file.",
		Parameters: []toolapi.Parameter{
			{Name: "file_path", Type: toolapi.TypeString, Required: true},
		},
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"file_path": {"type": "string"}},
			"required": ["file_path"]
		}`),
	}
}

func (ListCodeDefinitions) ReadOnly() bool { return true }

type listCodeDefinitionsParams struct {
	FilePath string `json:"file_path"`
}

type definitionEntry struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	Line int    `json:"line"`
}

type defPattern struct {
	kind string
	re   *regexp.Regexp
}

// defPatternsByExt holds one regex set per supported language (§4.B:
// Python, JavaScript, TypeScript, Java, C, C++, Go). Patterns match
// only unindented (top-level) declarations, except the Java method
// pattern, which also matches indented lines.
var defPatternsByExt = map[string][]defPattern{
	".py": {
		{"class", regexp.MustCompile(`^class\s+(\w+)`)},
		{"function", regexp.MustCompile(`^def\s+(\w+)`)},
	},
	".js": {
		{"class", regexp.MustCompile(`^class\s+(\w+)`)},
		{"function", regexp.MustCompile(`^function\s+(\w+)`)},
		{"function", regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?function\s+(\w+)`)},
		{"method", regexp.MustCompile(`^(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\(`)},
	},
	".jsx": {
		{"class", regexp.MustCompile(`^class\s+(\w+)`)},
		{"function", regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?function\s+(\w+)`)},
	},
	".ts": {
		{"class", regexp.MustCompile(`^(?:export\s+)?class\s+(\w+)`)},
		{"interface", regexp.MustCompile(`^(?:export\s+)?interface\s+(\w+)`)},
		{"function", regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?function\s+(\w+)`)},
	},
	".tsx": {
		{"class", regexp.MustCompile(`^(?:export\s+)?class\s+(\w+)`)},
		{"function", regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?function\s+(\w+)`)},
	},
	".java": {
		{"class", regexp.MustCompile(`^(?:public|private|protected)?\s*(?:static\s+)?(?:final\s+)?class\s+(\w+)`)},
		{"interface", regexp.MustCompile(`^(?:public|private|protected)?\s*interface\s+(\w+)`)},
		{"method", regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+)?[\w<>\[\]]+\s+(\w+)\s*\(`)},
	},
	".c": {
		{"function", regexp.MustCompile(`^[\w*]+\s+(\w+)\s*\([^;]*\)\s*\{?$`)},
		{"struct", regexp.MustCompile(`^struct\s+(\w+)`)},
	},
	".h": {
		{"function", regexp.MustCompile(`^[\w*]+\s+(\w+)\s*\([^;]*\)\s*\{?$`)},
		{"struct", regexp.MustCompile(`^struct\s+(\w+)`)},
	},
	".cpp": {
		{"class", regexp.MustCompile(`^class\s+(\w+)`)},
		{"function", regexp.MustCompile(`^[\w:*&<>]+\s+(\w+)\s*\([^;]*\)\s*\{?$`)},
	},
	".hpp": {
		{"class", regexp.MustCompile(`^class\s+(\w+)`)},
	},
	".go": {
		{"function", regexp.MustCompile(`^func\s+(\w+)`)},
		{"method", regexp.MustCompile(`^func\s+\([^)]+\)\s+(\w+)`)},
		{"type", regexp.MustCompile(`^type\s+(\w+)\s+(?:struct|interface)`)},
	},
}

func (ListCodeDefinitions) Execute(ctx context.Context, raw json.RawMessage, hctx *toolapi.Context) toolapi.Result {
	params, err := parseParams[listCodeDefinitionsParams](raw, "list_code_definitions")
	if err != nil {
		return errResult(err)
	}
	if params.FilePath == "" {
		return errResult(errkind.New(errkind.InvalidParameters, "list_code_definitions", errRequired("file_path")))
	}

	abs, err := pathguard.Resolve(hctx.RepoRoot, params.FilePath)
	if err != nil {
		return errResult(err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return errResult(errkind.New(errkind.NotFound, "list_code_definitions", err))
	}
	if info.IsDir() {
		return errResult(errkind.New(errkind.InvalidParameters, "list_code_definitions", errIsDir(params.FilePath)))
	}

	ext := strings.ToLower(filepath.Ext(abs))
	patterns, ok := defPatternsByExt[ext]
	if !ok {
		return toolapi.Result{
			Success:  true,
			Data:     map[string]any{"definitions": []definitionEntry{}},
			Metadata: map[string]any{"count": 0, "unsupported_extension": ext},
		}
	}

	f, err := os.Open(abs)
	if err != nil {
		return errResult(errkind.New(errkind.IOError, "list_code_definitions", err))
	}
	defer f.Close()

	var defs []definitionEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if ctx.Err() != nil {
			return errResult(errkind.New(errkind.Cancelled, "list_code_definitions", ctx.Err()))
		}
		line := scanner.Text()
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(line)
			if m != nil {
				defs = append(defs, definitionEntry{Kind: p.kind, Name: m[1], Line: lineNo})
				break
			}
		}
	}

	return toolapi.Result{
		Success:  true,
		Data:     map[string]any{"definitions": defs},
		Metadata: map[string]any{"count": len(defs)},
	}
}
