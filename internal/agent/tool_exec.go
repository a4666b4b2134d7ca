package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nexus-agent/orchestrator/internal/backoff"
)

// ToolExecConfig configures tool execution behavior including timeouts and
// retry settings.
type ToolExecConfig struct {
	// PerToolTimeout is the timeout for individual tool executions.
	// Default: 30 seconds.
	PerToolTimeout time.Duration

	// MaxAttempts is the number of attempts per tool call (default 1). The
	// orchestrator does not use ToolExecutor; its own retry loop is bounded
	// by orchestrator.MaxToolRetries.
	MaxAttempts int

	// RetryBackoff waits between retries.
	RetryBackoff time.Duration
}

// DefaultToolExecConfig returns sensible defaults for tool execution: a
// single attempt and a 30 second timeout.
func DefaultToolExecConfig() ToolExecConfig {
	return ToolExecConfig{
		PerToolTimeout: 30 * time.Second,
		MaxAttempts:    1,
		RetryBackoff:   0,
	}
}

// ToolExecutor runs a single tool call with a timeout and optional retry.
// Tool calls within a turn are dispatched one at a time by the
// orchestrator (see internal/orchestrator), so ToolExecutor itself does
// not fan out concurrently — concurrency here would only race two calls
// against the same conversation's working directory.
type ToolExecutor struct {
	registry *ToolRegistry
	config   ToolExecConfig
}

// NewToolExecutor creates a new tool executor with the given registry and
// configuration. Default values are applied if config fields are zero.
func NewToolExecutor(registry *ToolRegistry, config ToolExecConfig) *ToolExecutor {
	if config.PerToolTimeout <= 0 {
		config.PerToolTimeout = 30 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &ToolExecutor{
		registry: registry,
		config:   config,
	}
}

// ToolExecResult contains the result of a tool execution including timing
// and timeout information.
type ToolExecResult struct {
	ToolCall  ToolCall
	Result    ToolResult
	StartTime time.Time
	EndTime   time.Time
	TimedOut  bool
	Attempts  int
}

// Execute runs one tool call to completion, retrying up to MaxAttempts
// times on error (the orchestrator decides whether a given error kind is
// worth retrying; ToolExecutor itself retries unconditionally on any
// IsError result).
func (e *ToolExecutor) Execute(ctx context.Context, call ToolCall) ToolExecResult {
	start := time.Now()
	maxAttempts := e.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastResult ToolResult
	var timedOut bool
	var ran bool

	policy := backoff.BackoffPolicy{
		InitialMs: float64(e.config.RetryBackoff / time.Millisecond),
		MaxMs:     float64(e.config.RetryBackoff/time.Millisecond) * (1 << 10),
		Factor:    2,
		Jitter:    0.2,
	}

	retryResult, _ := backoff.RetryWithBackoff(ctx, policy, maxAttempts,
		func(attempt int) (ToolResult, error) {
			toolCtx, cancel := context.WithTimeout(ctx, e.config.PerToolTimeout)
			result, to := e.executeOnce(toolCtx, call)
			cancel()

			ran = true
			lastResult = result
			timedOut = to
			if result.IsError {
				return result, fmt.Errorf("tool call failed: %s", result.Content)
			}
			return result, nil
		},
	)

	result := lastResult
	if !ran {
		// Context was cancelled before the first attempt ran.
		result = ToolResult{ToolCallID: call.ID, Content: "tool execution canceled", IsError: true}
	}

	return ToolExecResult{
		ToolCall:  call,
		Result:    result,
		StartTime: start,
		EndTime:   time.Now(),
		TimedOut:  timedOut,
		Attempts:  retryResult.Attempts,
	}
}

// executeOnce runs a single attempt, racing the tool's result against the
// caller's context deadline so a hung tool cannot block the turn forever.
func (e *ToolExecutor) executeOnce(ctx context.Context, call ToolCall) (ToolResult, bool) {
	type outcome struct {
		result *ToolResult
		err    error
	}

	resultCh := make(chan outcome, 1)
	go func() {
		result, err := e.registry.Execute(ctx, call.Name, call.Input)
		select {
		case resultCh <- outcome{result: result, err: err}:
		default:
		}
	}()

	select {
	case <-ctx.Done():
		timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
		content := "tool execution canceled"
		if timedOut {
			content = fmt.Sprintf("tool execution timed out after %v", e.config.PerToolTimeout)
		}
		return ToolResult{ToolCallID: call.ID, Content: content, IsError: true}, timedOut
	case out := <-resultCh:
		if out.err != nil {
			return ToolResult{ToolCallID: call.ID, Content: out.err.Error(), IsError: true}, false
		}
		return ToolResult{ToolCallID: call.ID, Content: out.result.Content, IsError: out.result.IsError}, false
	}
}

// ExecuteSingle executes a single tool call by name with timeout and retry
// logic, without requiring a constructed ToolCall value.
func (e *ToolExecutor) ExecuteSingle(ctx context.Context, name string, input json.RawMessage) (*ToolResult, error) {
	res := e.Execute(ctx, ToolCall{Name: name, Input: input})
	return &res.Result, nil
}
