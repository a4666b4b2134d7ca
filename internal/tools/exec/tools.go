package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nexus-agent/orchestrator/internal/agent"
	argsafety "github.com/nexus-agent/orchestrator/internal/exec"
)

// RunCommandTool implements run_command: an arbitrary shell command,
// serialized per conversation.
type RunCommandTool struct {
	manager *Manager
}

// NewRunCommandTool creates a run_command tool backed by manager.
func NewRunCommandTool(manager *Manager) *RunCommandTool {
	return &RunCommandTool{manager: manager}
}

func (t *RunCommandTool) Name() string { return "run_command" }

func (t *RunCommandTool) Description() string {
	return "Run a shell command in the workspace and return its stdout, stderr and return code."
}

func (t *RunCommandTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Shell command to execute.",
			},
			"cwd": map[string]interface{}{
				"type":        "string",
				"description": "Working directory (relative to workspace).",
			},
			"timeout": map[string]interface{}{
				"type":        "integer",
				"description": "Timeout in seconds (default 300).",
				"minimum":     1,
			},
		},
		"required": []string{"command"},
	}
	return mustMarshalSchema(schema)
}

func (t *RunCommandTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Command string `json:"command"`
		Cwd     string `json:"cwd"`
		Timeout int    `json:"timeout"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Command) == "" {
		return toolError("command is required"), nil
	}

	result, err := t.manager.RunCommand(ctx, ConversationIDFromContext(ctx), input.Command, input.Cwd, time.Duration(input.Timeout)*time.Second)
	if err != nil {
		return nil, err
	}
	return resultToolResult(result)
}

// RunGitCommandTool implements run_git_command: a thin "git " prefix
// wrapper around RunCommand.
type RunGitCommandTool struct {
	manager *Manager
}

// NewRunGitCommandTool creates a run_git_command tool backed by manager.
func NewRunGitCommandTool(manager *Manager) *RunGitCommandTool {
	return &RunGitCommandTool{manager: manager}
}

func (t *RunGitCommandTool) Name() string { return "run_git_command" }

func (t *RunGitCommandTool) Description() string {
	return "Run a git subcommand in the workspace."
}

func (t *RunGitCommandTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"git_command": map[string]interface{}{
				"type":        "string",
				"description": "Arguments to pass to git, without the leading \"git\".",
			},
			"cwd": map[string]interface{}{
				"type":        "string",
				"description": "Working directory (relative to workspace).",
			},
		},
		"required": []string{"git_command"},
	}
	return mustMarshalSchema(schema)
}

func (t *RunGitCommandTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		GitCommand string `json:"git_command"`
		Cwd        string `json:"cwd"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.GitCommand) == "" {
		return toolError("git_command is required"), nil
	}
	if !argsafety.IsSafeArgument(input.GitCommand) {
		return toolError("git_command contains disallowed shell metacharacters or control characters"), nil
	}

	result, err := t.manager.RunGitCommand(ctx, ConversationIDFromContext(ctx), input.GitCommand, input.Cwd)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return toolError(result.Stderr), nil
	}
	return resultToolResult(result)
}

// RunTestsTool implements run_tests: a pytest wrapper.
type RunTestsTool struct {
	manager *Manager
}

// NewRunTestsTool creates a run_tests tool backed by manager.
func NewRunTestsTool(manager *Manager) *RunTestsTool {
	return &RunTestsTool{manager: manager}
}

func (t *RunTestsTool) Name() string { return "run_tests" }

func (t *RunTestsTool) Description() string {
	return "Run the project's test suite with pytest."
}

func (t *RunTestsTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"test_path": map[string]interface{}{
				"type":        "string",
				"description": "Path to tests (default: \"tests/\").",
			},
			"cwd": map[string]interface{}{
				"type":        "string",
				"description": "Working directory (relative to workspace).",
			},
			"verbose": map[string]interface{}{
				"type":        "boolean",
				"description": "Run pytest with -v (default: true).",
			},
		},
	}
	return mustMarshalSchema(schema)
}

func (t *RunTestsTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	input := struct {
		TestPath string `json:"test_path"`
		Cwd      string `json:"cwd"`
		Verbose  *bool  `json:"verbose"`
	}{TestPath: "tests/"}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.TestPath) == "" {
		input.TestPath = "tests/"
	}
	if !argsafety.IsSafeArgument(input.TestPath) {
		return toolError("test_path contains disallowed shell metacharacters or control characters"), nil
	}
	verbose := true
	if input.Verbose != nil {
		verbose = *input.Verbose
	}

	result, err := t.manager.RunTests(ctx, ConversationIDFromContext(ctx), input.TestPath, input.Cwd, verbose)
	if err != nil {
		return nil, err
	}
	return resultToolResult(result)
}

// StartBackgroundProcessTool implements start_background_process.
type StartBackgroundProcessTool struct {
	manager *Manager
}

// NewStartBackgroundProcessTool creates a start_background_process tool.
func NewStartBackgroundProcessTool(manager *Manager) *StartBackgroundProcessTool {
	return &StartBackgroundProcessTool{manager: manager}
}

func (t *StartBackgroundProcessTool) Name() string { return "start_background_process" }

func (t *StartBackgroundProcessTool) Description() string {
	return "Launch a detached background process identified by process_id."
}

func (t *StartBackgroundProcessTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Shell command to launch.",
			},
			"process_id": map[string]interface{}{
				"type":        "string",
				"description": "Caller-chosen identifier for this process.",
			},
			"cwd": map[string]interface{}{
				"type":        "string",
				"description": "Working directory (relative to workspace).",
			},
		},
		"required": []string{"command", "process_id"},
	}
	return mustMarshalSchema(schema)
}

func (t *StartBackgroundProcessTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Command   string `json:"command"`
		ProcessID string `json:"process_id"`
		Cwd       string `json:"cwd"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Command) == "" {
		return toolError("command is required"), nil
	}
	processID, err := argsafety.SanitizeExecutableValue(input.ProcessID)
	if err != nil {
		return toolError(fmt.Sprintf("process_id is unsafe: %v", err)), nil
	}

	proc, err := t.manager.StartBackgroundProcess(ctx, input.Command, processID, input.Cwd)
	if err != nil {
		return nil, err
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"process_id": proc.id,
		"pid":        pidOf(proc.cmd),
		"command":    proc.command,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

// StopBackgroundProcessTool implements stop_background_process.
type StopBackgroundProcessTool struct {
	manager *Manager
}

// NewStopBackgroundProcessTool creates a stop_background_process tool.
func NewStopBackgroundProcessTool(manager *Manager) *StopBackgroundProcessTool {
	return &StopBackgroundProcessTool{manager: manager}
}

func (t *StopBackgroundProcessTool) Name() string { return "stop_background_process" }

func (t *StopBackgroundProcessTool) Description() string {
	return "Stop a background process started with start_background_process."
}

func (t *StopBackgroundProcessTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"process_id": map[string]interface{}{
				"type":        "string",
				"description": "Identifier passed to start_background_process.",
			},
		},
		"required": []string{"process_id"},
	}
	return mustMarshalSchema(schema)
}

func (t *StopBackgroundProcessTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input struct {
		ProcessID string `json:"process_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	processID, err := argsafety.SanitizeExecutableValue(input.ProcessID)
	if err != nil {
		return toolError(fmt.Sprintf("process_id is unsafe: %v", err)), nil
	}

	if err := t.manager.StopBackgroundProcess(processID); err != nil {
		return nil, err
	}

	payload, _ := json.MarshalIndent(map[string]interface{}{"status": "stopped", "process_id": processID}, "", "  ")
	return &agent.ToolResult{Content: string(payload)}, nil
}

// ListBackgroundProcessesTool implements list_background_processes.
type ListBackgroundProcessesTool struct {
	manager *Manager
}

// NewListBackgroundProcessesTool creates a list_background_processes tool.
func NewListBackgroundProcessesTool(manager *Manager) *ListBackgroundProcessesTool {
	return &ListBackgroundProcessesTool{manager: manager}
}

func (t *ListBackgroundProcessesTool) Name() string { return "list_background_processes" }

func (t *ListBackgroundProcessesTool) Description() string {
	return "List background processes and their status."
}

func (t *ListBackgroundProcessesTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *ListBackgroundProcessesTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	_ = params
	processes := t.manager.list()
	lines := make([]string, 0, len(processes))
	for _, p := range processes {
		lines = append(lines, fmt.Sprintf("%s: %s (pid %d)", p.ID, p.Status, p.PID))
	}
	content := "no background processes"
	if len(lines) > 0 {
		content = strings.Join(lines, "\n")
	}

	if stats := t.manager.QueueStats(); len(stats) > 0 {
		queueLines := make([]string, 0, len(stats))
		for _, s := range stats {
			queueLines = append(queueLines, fmt.Sprintf("%s: %d pending, %d active", s.Lane, s.Pending, s.Active))
		}
		content += "\nforeground command queue:\n" + strings.Join(queueLines, "\n")
	}

	return &agent.ToolResult{Content: content}, nil
}

func resultToolResult(result ExecResult) (*agent.ToolResult, error) {
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

func toolError(message string) *agent.ToolResult {
	payload, _ := json.Marshal(map[string]string{"error": message})
	return &agent.ToolResult{Content: string(payload), IsError: true}
}

func mustMarshalSchema(schema map[string]interface{}) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
