// Package events defines the envelope types streamed to clients over a
// turn's duplex connection, and the emitter/sink machinery that produces
// them with a monotonic, atomic sequence number.
package events

import (
	"time"

	"github.com/nexus-agent/orchestrator/pkg/models"
)

// Kind discriminates the sealed set of envelope payloads sent to a client
// during a turn.
type Kind string

const (
	KindConversationCreated Kind = "conversation_created"
	KindMessage             Kind = "message"
	KindMessagePart         Kind = "message_part"
	KindNodeAdded           Kind = "node_added"
	KindTextChunk           Kind = "text_chunk"
	KindToolStart           Kind = "tool_start"
	KindToolComplete        Kind = "tool_complete"
	KindMessageComplete     Kind = "message_complete"
	KindError               Kind = "error"
)

// ToolStatus is the outcome reported on a tool_complete envelope.
type ToolStatus string

const (
	ToolStatusSuccess   ToolStatus = "success"
	ToolStatusError     ToolStatus = "error"
	ToolStatusCancelled ToolStatus = "cancelled"
)

// Envelope is one unit streamed to a client: a Kind discriminator plus at
// most one populated payload field, following the same "one Type, one
// payload" shape as the message part and background-process types in
// pkg/models. Sequence is assigned by the Emitter and is monotonic per
// Emitter instance, never per conversation.
type Envelope struct {
	Type           Kind      `json:"type"`
	ConversationID int64     `json:"conversation_id,omitempty"`
	Sequence       uint64    `json:"sequence"`
	Time           time.Time `json:"time"`

	ConversationCreated *ConversationCreatedPayload `json:"-"`
	Message             *MessagePayload             `json:"-"`
	MessagePart         *MessagePartPayload         `json:"-"`
	NodeAdded           *NodeAddedPayload           `json:"-"`
	TextChunk           *TextChunkPayload           `json:"-"`
	ToolStart           *ToolStartPayload           `json:"-"`
	ToolComplete        *ToolCompletePayload        `json:"-"`
	MessageComplete     *MessageCompletePayload     `json:"-"`
	Error               *ErrorPayload               `json:"-"`
}

type ConversationCreatedPayload struct {
	ConversationID int64 `json:"conversation_id"`
}

type MessagePayload struct {
	ID        int64                `json:"id"`
	Parts     []models.MessagePart `json:"parts,omitempty"`
	Role      models.Role          `json:"role"`
	CreatedAt time.Time            `json:"created_at"`
}

type MessagePartPayload struct {
	MessageID int64              `json:"message_id"`
	Part      models.MessagePart `json:"part"`
	Role      models.Role        `json:"role"`
}

type NodeAddedPayload struct {
	MessageID int64       `json:"message_id"`
	Node      models.Node `json:"node"`
}

type TextChunkPayload struct {
	MessageID int64       `json:"message_id"`
	Chunk     string      `json:"chunk"`
	Role      models.Role `json:"role"`
}

type ToolStartPayload struct {
	MessageID int64  `json:"message_id"`
	ToolName  string `json:"tool_name"`
	Args      []byte `json:"args"`
}

type ToolCompletePayload struct {
	MessageID    int64      `json:"message_id"`
	ToolName     string     `json:"tool_name"`
	Result       string     `json:"result"`
	Status       ToolStatus `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

type MessageCompletePayload struct {
	ID        int64       `json:"id"`
	Role      models.Role `json:"role"`
	ModelName string      `json:"model_name,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type ErrorPayload struct {
	Error          string `json:"error"`
	ConversationID int64  `json:"conversation_id,omitempty"`

	// RequestID echoes the triggering frame's client-supplied id, if any
	// (see DESIGN.md Open Question decisions). Additive: no named field
	// of the error taxonomy depends on it.
	RequestID string `json:"request_id,omitempty"`
}
