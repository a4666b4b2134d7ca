package exec

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nexus-agent/orchestrator/internal/agent"
)

func TestRunCommandReturnsStdout(t *testing.T) {
	mgr := NewManager(t.TempDir())
	tool := NewRunCommandTool(mgr)
	params, _ := json.Marshal(map[string]interface{}{"command": "echo hello"})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success: %s", result.Content)
	}
	if !strings.Contains(result.Content, "hello") {
		t.Fatalf("expected stdout in result: %s", result.Content)
	}
}

func TestRunGitCommandSurfacesStderrOnFailure(t *testing.T) {
	mgr := NewManager(t.TempDir())
	tool := NewRunGitCommandTool(mgr)
	params, _ := json.Marshal(map[string]interface{}{"git_command": "not-a-real-subcommand"})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected failure for unknown git subcommand: %s", result.Content)
	}
}

func TestBackgroundProcessLifecycle(t *testing.T) {
	mgr := NewManager(t.TempDir())
	start := NewStartBackgroundProcessTool(mgr)
	list := NewListBackgroundProcessesTool(mgr)
	stop := NewStopBackgroundProcessTool(mgr)

	startParams, _ := json.Marshal(map[string]interface{}{
		"command":    "sleep 5",
		"process_id": "p1",
	})
	result, err := start.Execute(context.Background(), startParams)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success: %s", result.Content)
	}

	listResult, err := list.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(listResult.Content, "p1") {
		t.Fatalf("expected p1 in listing: %s", listResult.Content)
	}

	stopParams, _ := json.Marshal(map[string]interface{}{"process_id": "p1"})
	stopResult, err := stop.Execute(context.Background(), stopParams)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopResult.IsError {
		t.Fatalf("expected stop success: %s", stopResult.Content)
	}

	listResult, err = list.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(listResult.Content, "p1") {
		t.Fatalf("expected p1 to be removed from listing: %s", listResult.Content)
	}
}

func TestStartBackgroundProcessClassifiesPortInUseAsRetryable(t *testing.T) {
	mgr := NewManager(t.TempDir())
	start := NewStartBackgroundProcessTool(mgr)

	params, _ := json.Marshal(map[string]interface{}{
		"command":    "echo 'Error: listen EADDRINUSE: address already in use' >&2; exit 1",
		"process_id": "p2",
	})
	_, err := start.Execute(context.Background(), params)
	if err == nil {
		t.Fatal("expected an error for a process that exits immediately")
	}
	if !agent.IsToolRetryable(err) {
		t.Fatalf("expected a retryable error for a port-in-use failure, got %v", err)
	}
}

func TestRunCommandDefaultTimeoutIsThreeHundredSeconds(t *testing.T) {
	if DefaultTimeout != 300*time.Second {
		t.Fatalf("DefaultTimeout = %v, want 300s", DefaultTimeout)
	}
}
