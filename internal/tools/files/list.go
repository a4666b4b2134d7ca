package files

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nexus-agent/orchestrator/internal/agent"
)

// defaultExcludePatterns are the path segments and glob patterns list_files
// prunes from its walk when the caller passes no exclude_patterns. Matching
// one of these against any directory segment skips that whole subtree;
// matching it against a file's basename skips just that file.
var defaultExcludePatterns = []string{
	"node_modules", ".git", "__pycache__", ".pytest_cache",
	".venv", "venv", "env",
	"dist", "build", ".next", ".nuxt", ".output", "coverage",
	".DS_Store",
	"*.pyc", "*.pyo", "*.pyd", "*.egg-info",
	".tox", ".mypy_cache", ".ruff_cache",
	"target", "bin", "obj",
}

// ListTool lists files and directories beneath a workspace-relative path,
// filtered by a glob pattern, exclusion list and (optionally) the scanned
// directory's .gitignore.
type ListTool struct {
	resolver Resolver
}

// NewListTool creates a list_files tool scoped to the workspace.
func NewListTool(cfg Config) *ListTool {
	return &ListTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *ListTool) Name() string { return "list_files" }

func (t *ListTool) Description() string {
	return "List files (and optionally directories) under a path in the workspace, filtered by a glob pattern and exclusion rules."
}

func (t *ListTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"directory": map[string]interface{}{
				"type":        "string",
				"description": "Directory to list (relative to workspace, default: \".\").",
			},
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Glob pattern matched against each entry's basename (default: \"*\").",
			},
			"recursive": map[string]interface{}{
				"type":        "boolean",
				"description": "List nested directories recursively (default: false).",
			},
			"include_dirs": map[string]interface{}{
				"type":        "boolean",
				"description": "Include directory entries in the result (default: false).",
			},
			"exclude_patterns": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Path segments/glob patterns to prune. Defaults to a standard ignore list; pass [] to disable it.",
			},
			"respect_gitignore": map[string]interface{}{
				"type":        "boolean",
				"description": "Additionally exclude paths matched by a .gitignore at the scanned directory's root (default: true).",
			},
		},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

type listFilesInput struct {
	Directory        string   `json:"directory"`
	Pattern          string   `json:"pattern"`
	Recursive        bool     `json:"recursive"`
	IncludeDirs      bool     `json:"include_dirs"`
	ExcludePatterns  []string `json:"exclude_patterns"`
	excludeSet       bool
	RespectGitignore *bool `json:"respect_gitignore"`
}

func (t *ListTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var raw struct {
		Directory        string   `json:"directory"`
		Pattern          string   `json:"pattern"`
		Recursive        bool     `json:"recursive"`
		IncludeDirs      bool     `json:"include_dirs"`
		ExcludePatterns  []string `json:"exclude_patterns"`
		RespectGitignore *bool    `json:"respect_gitignore"`
	}
	if err := json.Unmarshal(params, &raw); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}

	input := listFilesInput{
		Directory:        raw.Directory,
		Pattern:          raw.Pattern,
		Recursive:        raw.Recursive,
		IncludeDirs:      raw.IncludeDirs,
		ExcludePatterns:  raw.ExcludePatterns,
		excludeSet:       raw.ExcludePatterns != nil,
		RespectGitignore: raw.RespectGitignore,
	}
	if strings.TrimSpace(input.Directory) == "" {
		input.Directory = "."
	}
	if strings.TrimSpace(input.Pattern) == "" {
		input.Pattern = "*"
	}
	excludes := defaultExcludePatterns
	if input.excludeSet {
		excludes = input.ExcludePatterns
	}
	respectGitignore := true
	if input.RespectGitignore != nil {
		respectGitignore = *input.RespectGitignore
	}

	resolved, err := t.resolver.Resolve(input.Directory)
	if err != nil {
		return toolError(err.Error()), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("stat path: %v", err)), nil
	}
	if !info.IsDir() {
		return toolError("path is not a directory"), nil
	}

	ignorePatterns := excludes
	if respectGitignore {
		if gi, err := loadGitignore(filepath.Join(resolved, ".gitignore")); err == nil {
			ignorePatterns = append(append([]string{}, ignorePatterns...), gi...)
		}
	}

	entries, err := t.walk(resolved, input.Recursive, input.IncludeDirs, input.Pattern, ignorePatterns)
	if err != nil {
		return toolError(err.Error()), nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i]["path"].(string) < entries[j]["path"].(string)
	})

	payload, err := json.MarshalIndent(map[string]interface{}{
		"directory": input.Directory,
		"entries":   entries,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

func (t *ListTool) walk(root string, recursive, includeDirs bool, pattern string, excludes []string) ([]map[string]interface{}, error) {
	var entries []map[string]interface{}

	if !recursive {
		dirEntries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read directory: %w", err)
		}
		for _, d := range dirEntries {
			if matchesAny(d.Name(), excludes) {
				continue
			}
			if d.IsDir() && !includeDirs {
				continue
			}
			if !d.IsDir() && !matchGlob(pattern, d.Name()) {
				continue
			}
			entries = append(entries, direntInfo(d.Name(), d))
		}
		return entries, nil
	}

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == root {
			return nil
		}
		if matchesAny(d.Name(), excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}

		if d.IsDir() {
			if includeDirs {
				entries = append(entries, direntInfo(rel, d))
			}
			return nil
		}
		if !matchGlob(pattern, d.Name()) {
			return nil
		}
		entries = append(entries, direntInfo(rel, d))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return entries, nil
}

func matchGlob(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// loadGitignore reads a simplified set of ignore patterns from a .gitignore
// file: one pattern per line, blank lines and "#" comments skipped, leading
// "/" stripped (this tool matches by basename, not by anchored path, so an
// anchored pattern degrades to an unanchored one). Negation ("!pattern") is
// not supported and such lines are skipped.
func loadGitignore(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		line = strings.TrimPrefix(line, "/")
		line = strings.TrimSuffix(line, "/")
		if line != "" {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}

func direntInfo(rel string, d os.DirEntry) map[string]interface{} {
	kind := "file"
	if d.IsDir() {
		kind = "directory"
	}
	size := int64(0)
	if info, err := d.Info(); err == nil {
		size = info.Size()
	}
	return map[string]interface{}{
		"path": filepath.ToSlash(rel),
		"type": kind,
		"size": size,
	}
}
