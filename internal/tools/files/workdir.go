package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/nexus-agent/orchestrator/internal/agent"
)

// WorkingDirectoryTool reports the workspace root as seen by the tools.
type WorkingDirectoryTool struct {
	resolver Resolver
}

// NewWorkingDirectoryTool creates a get_working_directory tool.
func NewWorkingDirectoryTool(cfg Config) *WorkingDirectoryTool {
	return &WorkingDirectoryTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *WorkingDirectoryTool) Name() string { return "get_working_directory" }

func (t *WorkingDirectoryTool) Description() string {
	return "Return the absolute path of the current workspace root."
}

func (t *WorkingDirectoryTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *WorkingDirectoryTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	_ = params
	root, err := t.resolver.Resolve(".")
	if err != nil {
		return toolError(err.Error()), nil
	}
	payload, err := json.MarshalIndent(map[string]interface{}{"path": root}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

// FileExistsTool checks whether a workspace-relative path exists.
type FileExistsTool struct {
	resolver Resolver
}

// NewFileExistsTool creates a file_exists tool scoped to the workspace.
func NewFileExistsTool(cfg Config) *FileExistsTool {
	return &FileExistsTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *FileExistsTool) Name() string { return "file_exists" }

func (t *FileExistsTool) Description() string {
	return "Check whether a path exists in the workspace, and whether it is a file or directory."
}

func (t *FileExistsTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to check (relative to workspace).",
			},
		},
		"required": []string{"path"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *FileExistsTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return toolError("path is required"), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}

	info, err := os.Stat(resolved)
	exists := err == nil
	kind := ""
	if exists {
		kind = "file"
		if info.IsDir() {
			kind = "directory"
		}
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"path":   input.Path,
		"exists": exists,
		"type":   kind,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
