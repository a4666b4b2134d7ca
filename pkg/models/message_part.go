package models

import "encoding/json"

// PartKind discriminates the sealed set of MessagePart payloads. A
// MessagePart is modeled as a tagged union (Kind plus at most one
// populated payload pointer) rather than as an interface inspected with a
// type switch at each call site: one discriminator field, exactly one
// non-nil payload per Kind.
type PartKind string

const (
	PartUserPrompt   PartKind = "user-prompt"
	PartSystemPrompt PartKind = "system-prompt"
	PartText         PartKind = "text"
	PartThinking     PartKind = "thinking"
	PartToolCall     PartKind = "tool-call"
	PartToolReturn   PartKind = "tool-return"
)

// MessagePart is one unit of an AGENT message's structured content. Seq is
// a monotonic counter assigned when the part is produced within a turn;
// with Kind it forms the part's key (see Key), in place of pointer/object
// identity. Seq is not serialized, and no code in this module
// deduplicates parts by that key. user-prompt and system-prompt parts
// are never persisted as part of an AGENT message's parts payload; they
// exist only transiently
// while building a request.
type MessagePart struct {
	Kind PartKind `json:"part_kind"`
	Seq  uint64   `json:"-"`

	UserPrompt   *UserPromptPart   `json:"user_prompt,omitempty"`
	SystemPrompt *SystemPromptPart `json:"system_prompt,omitempty"`
	Text         *TextPart         `json:"text,omitempty"`
	Thinking     *ThinkingPart     `json:"thinking,omitempty"`
	ToolCall     *ToolCallPart     `json:"tool_call,omitempty"`
	ToolReturn   *ToolReturnPart   `json:"tool_return,omitempty"`
}

// UserPromptPart is the single part of a USER message.
type UserPromptPart struct {
	Content string `json:"content"`
}

// SystemPromptPart carries a system instruction injected ahead of history
// when building a provider request. Stripped before persistence.
type SystemPromptPart struct {
	Content string `json:"content"`
}

// TextPart is plain assistant-visible text, optionally carrying the
// provider's own id for the content block it came from.
type TextPart struct {
	Content string `json:"content"`
	ID      string `json:"id,omitempty"`
}

// ThinkingPart carries extended-thinking/reasoning text, kept separate
// from TextPart so clients can choose whether to render it.
type ThinkingPart struct {
	Content   string `json:"content"`
	Provider  string `json:"provider,omitempty"`
	Signature string `json:"signature,omitempty"`
	ID        string `json:"id,omitempty"`
}

// ToolCallPart is an assistant request to invoke a tool.
type ToolCallPart struct {
	ToolName   string          `json:"tool_name"`
	Args       json.RawMessage `json:"args"`
	ToolCallID string          `json:"tool_call_id"`
}

// ToolReturnPart is the outcome of a tool invocation. Content is nil for
// an absent/None result, a plain string for text results, and a
// stringified JSON document when the underlying tool result was a list
// or mapping.
type ToolReturnPart struct {
	ToolName   string  `json:"tool_name"`
	ToolCallID string  `json:"tool_call_id"`
	Content    *string `json:"content"`
	IsError    bool    `json:"is_error,omitempty"`
}

// Key returns the part's (kind, seq) pair, an identity that does not
// depend on pointer/object identity.
func (p MessagePart) Key() (PartKind, uint64) {
	return p.Kind, p.Seq
}
