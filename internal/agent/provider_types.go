package agent

import (
	"context"
	"encoding/json"
)

// LLMProvider defines the interface for Large Language Model backends.
//
// Implementations handle the specifics of communicating with a given LLM
// API while presenting a unified streaming interface to the orchestrator.
// Implementations must be safe for concurrent use.
//
// See providers.AnthropicProvider and providers.OpenAIProvider.
type LLMProvider interface {
	// Complete sends a prompt and returns a streaming response.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name.
	Name() string

	// SupportsTools returns whether the provider supports tool use.
	SupportsTools() bool
}

// CompletionRequest contains all parameters for an LLM completion request.
type CompletionRequest struct {
	Model     string              `json:"model"`
	System    string              `json:"system,omitempty"`
	Messages  []CompletionMessage `json:"messages"`
	Tools     []Tool              `json:"tools,omitempty"`
	MaxTokens int                 `json:"max_tokens,omitempty"`

	// EnableThinking requests extended-thinking output, surfaced to the
	// client as ThinkingPart message parts.
	EnableThinking       bool `json:"enable_thinking,omitempty"`
	ThinkingBudgetTokens int  `json:"thinking_budget_tokens,omitempty"`
}

// CompletionMessage represents a single message in a conversation as seen
// by the provider.
type CompletionMessage struct {
	Role        string       `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// CompletionChunk represents a single chunk in a streaming LLM response.
type CompletionChunk struct {
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
	Done     bool      `json:"done,omitempty"`
	Error    error     `json:"-"`

	// Thinking carries an extended-thinking text delta. ThinkingStart and
	// ThinkingEnd bracket a run of Thinking deltas so callers can assemble
	// a single ThinkingPart without inspecting block boundaries.
	Thinking      string `json:"thinking,omitempty"`
	ThinkingStart bool   `json:"thinking_start,omitempty"`
	ThinkingEnd   bool   `json:"thinking_end,omitempty"`

	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// ToolCall is an assistant request to invoke a tool, at the provider/agent
// boundary.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of a tool invocation, at the provider/agent
// boundary.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Model describes one model a provider can serve, for capability lookups
// (e.g. context window sizing during compaction).
type Model struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ContextSize    int    `json:"context_size"`
	SupportsVision bool   `json:"supports_vision"`
}

// Tool defines the interface every C2 tool implements.
type Tool interface {
	// Name returns the tool name for LLM function calling.
	Name() string

	// Description returns a natural language description of what the tool does.
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with the given JSON parameters.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}
