package files

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nexus-agent/orchestrator/internal/agent"
)

// SearchTool greps for a pattern across files beneath a workspace path.
type SearchTool struct {
	resolver     Resolver
	maxMatches   int
	maxFileBytes int64
}

// NewSearchTool creates a search_in_files tool scoped to the workspace.
func NewSearchTool(cfg Config) *SearchTool {
	return &SearchTool{
		resolver:     Resolver{Root: cfg.Workspace},
		maxMatches:   500,
		maxFileBytes: 2 << 20,
	}
}

func (t *SearchTool) Name() string { return "search_in_files" }

func (t *SearchTool) Description() string {
	return "Search for a regular expression across files under a workspace path."
}

func (t *SearchTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Regular expression to search for.",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to search under (relative to workspace, default: \".\").",
			},
			"case_sensitive": map[string]interface{}{
				"type":        "boolean",
				"description": "Match case-sensitively (default: true).",
			},
		},
		"required": []string{"pattern"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *SearchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Pattern       string `json:"pattern"`
		Path          string `json:"path"`
		CaseSensitive *bool  `json:"case_sensitive"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return toolError("pattern is required"), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		input.Path = "."
	}

	exprSrc := input.Pattern
	if input.CaseSensitive != nil && !*input.CaseSensitive {
		exprSrc = "(?i)" + exprSrc
	}
	expr, err := regexp.Compile(exprSrc)
	if err != nil {
		return toolError(fmt.Sprintf("invalid pattern: %v", err)), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}

	type match struct {
		Path string `json:"path"`
		Line int    `json:"line"`
		Text string `json:"text"`
	}
	var matches []match

	walkErr := filepath.WalkDir(resolved, func(p string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}
		if len(matches) >= t.maxMatches {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > t.maxFileBytes {
			return nil
		}
		file, err := os.Open(p)
		if err != nil {
			return nil
		}
		defer file.Close()

		rel, err := filepath.Rel(resolved, p)
		if err != nil {
			rel = p
		}
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			if expr.MatchString(line) {
				matches = append(matches, match{Path: filepath.ToSlash(rel), Line: lineNum, Text: line})
				if len(matches) >= t.maxMatches {
					break
				}
			}
		}
		return nil
	})
	if walkErr != nil && walkErr != filepath.SkipAll {
		return toolError(fmt.Sprintf("search: %v", walkErr)), nil
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"pattern": input.Pattern,
		"matches": matches,
		"limited": len(matches) >= t.maxMatches,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
