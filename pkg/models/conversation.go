// Package models provides the domain types shared across the orchestration
// server: conversations, messages, message parts, nodes and background
// processes.
package models

import (
	"strconv"
	"strings"
	"time"
)

// Conversation is a single durable chat thread between a client and the
// agent. It owns an ordered sequence of Messages. Conversations carry no
// persisted summary, since the persisted schema has no column for it:
// the orchestrator keeps the latest compaction summary in memory per
// conversation and builds a new one from the message history when that
// copy is gone, e.g. after a restart (see DESIGN.md Open Question
// decisions).
type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultConversationTitle is used when a conversation is created without
// an explicit title.
const DefaultConversationTitle = "New Conversation"

// Role identifies who produced a Message. Only two roles are persisted;
// system instructions and tool plumbing live inside MessageParts instead
// of as a Message-level role.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAgent Role = "AGENT"
)

// MaxMessageContentChars bounds Message.Content; writes exceeding this are
// rejected before insert.
const MaxMessageContentChars = 25000

// Message is one row of conversation history. Content is the plain-text,
// human-readable rendering of the message (what a client lists in a
// transcript view); Parts is the optional structured payload an AGENT
// message carries (text/thinking/tool-call/tool-return entries). A USER
// message has no Parts — its content IS the user-prompt. An AGENT message
// is inserted with empty Content at the start of a run, giving the
// orchestrator a stable id for streamed envelopes, and is finalized at
// the end of the run with Content set to the final text output, Parts set
// to the accumulated part payload, and ModelName/FinalizedAt recorded.
type Message struct {
	ID             int64         `json:"id"`
	ConversationID int64         `json:"conversation_id"`
	Role           Role          `json:"role"`
	Content        string        `json:"content"`
	Parts          []MessagePart `json:"parts,omitempty"`
	ModelName      string        `json:"model_name,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	FinalizedAt    time.Time     `json:"finalized_at,omitempty"`
}

// IsPending reports whether this is an AGENT message row inserted at the
// start of a run that has not yet been finalized.
func (m *Message) IsPending() bool {
	return m.Role == RoleAgent && m.Content == "" && len(m.Parts) == 0
}

// TextContent concatenates every TextPart in the message's Parts, in part
// order. For a USER message, or an AGENT message finalized without a
// structured Parts payload ("legacy text-only content"), this returns
// Content directly.
func (m *Message) TextContent() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Kind == PartText && p.Text != nil {
			sb.WriteString(p.Text.Content)
		}
	}
	return sb.String()
}

// ToolCallParts returns the tool-call parts of the message, in part order.
func (m *Message) ToolCallParts() []ToolCallPart {
	var calls []ToolCallPart
	for _, p := range m.Parts {
		if p.Kind == PartToolCall && p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}

// ToolReturnParts returns the tool-return parts of the message, in part order.
func (m *Message) ToolReturnParts() []ToolReturnPart {
	var results []ToolReturnPart
	for _, p := range m.Parts {
		if p.Kind == PartToolReturn && p.ToolReturn != nil {
			results = append(results, *p.ToolReturn)
		}
	}
	return results
}

// UnmatchedToolCallIDs returns tool_call_ids present in ToolCallParts with
// no corresponding ToolReturnPart, in call order. Used by the history
// codec to detect and repair truncated agent runs on read.
func (m *Message) UnmatchedToolCallIDs() []string {
	returned := make(map[string]bool, len(m.Parts))
	for _, r := range m.ToolReturnParts() {
		returned[r.ToolCallID] = true
	}
	var missing []string
	for _, c := range m.ToolCallParts() {
		if !returned[c.ToolCallID] {
			missing = append(missing, c.ToolCallID)
		}
	}
	return missing
}

// Node is a streamed, ephemeral view of one step of an agent run: the
// non-tool parts produced during that step, plus the model that produced
// them. Nodes are never persisted — they exist only as node_added
// envelopes on the wire. Tool parts never appear in a Node; they are
// reported out-of-band via tool_start/tool_complete envelopes and land in
// the owning message's Parts once the run is finalized.
type Node struct {
	ID        string        `json:"id"`
	Step      int           `json:"step"`
	Parts     []MessagePart `json:"parts"`
	ModelName string        `json:"model_name"`
	Timestamp time.Time     `json:"timestamp"`
}

// NodeID formats the conventional step-N node identifier for a 1-based
// step number.
func NodeID(step int) string {
	return "step-" + strconv.Itoa(step)
}

// BackgroundProcessStatus is the lifecycle state of a BackgroundProcess.
type BackgroundProcessStatus string

const (
	ProcessRunning BackgroundProcessStatus = "running"
	ProcessExited  BackgroundProcessStatus = "exited"
	ProcessStopped BackgroundProcessStatus = "stopped"
	ProcessFailed  BackgroundProcessStatus = "failed"
)

// BackgroundProcess describes a long-running process started by the
// start_background_process tool. The process id is caller-supplied (see
// DESIGN.md Open Question decisions), matching the original prototype.
type BackgroundProcess struct {
	ID        string                  `json:"id"`
	PID       int                     `json:"pid"`
	Command   string                  `json:"command"`
	Cwd       string                  `json:"cwd"`
	Status    BackgroundProcessStatus `json:"status"`
	StartedAt time.Time               `json:"started_at"`
	ExitedAt  time.Time               `json:"exited_at,omitempty"`
	ExitCode  int                     `json:"exit_code,omitempty"`
}
