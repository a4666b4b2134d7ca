package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nexus-agent/orchestrator/pkg/models"
)

// Sink receives envelopes as they are emitted. Implementations must be
// non-blocking or handle backpressure gracefully, and safe to call from
// multiple goroutines.
type Sink interface {
	Emit(ctx context.Context, e Envelope)
}

// Emitter generates envelopes for one conversation's turn with a
// monotonic, atomic sequence counter, and dispatches them to a Sink. It
// never blocks the orchestrator beyond what the sink's own flow control
// imposes.
type Emitter struct {
	conversationID int64
	sequence       uint64
	sink           Sink
}

// NewEmitter creates an emitter for the given conversation, dispatching to
// sink. If sink is nil, a NopSink is used.
func NewEmitter(conversationID int64, sink Sink) *Emitter {
	if sink == nil {
		sink = NopSink{}
	}
	return &Emitter{conversationID: conversationID, sink: sink}
}

func (e *Emitter) nextSeq() uint64 {
	return atomic.AddUint64(&e.sequence, 1)
}

func (e *Emitter) base(kind Kind) Envelope {
	return Envelope{
		Type:           kind,
		ConversationID: e.conversationID,
		Sequence:       e.nextSeq(),
		Time:           time.Now(),
	}
}

func (e *Emitter) emit(ctx context.Context, envelope Envelope) Envelope {
	e.sink.Emit(ctx, envelope)
	return envelope
}

// ConversationCreated emits a conversation_created envelope.
func (e *Emitter) ConversationCreated(ctx context.Context, conversationID int64) Envelope {
	envelope := e.base(KindConversationCreated)
	envelope.ConversationCreated = &ConversationCreatedPayload{ConversationID: conversationID}
	return e.emit(ctx, envelope)
}

// Message emits a message envelope for a freshly persisted message row.
func (e *Emitter) Message(ctx context.Context, msg *models.Message) Envelope {
	envelope := e.base(KindMessage)
	envelope.Message = &MessagePayload{
		ID:        msg.ID,
		Parts:     msg.Parts,
		Role:      msg.Role,
		CreatedAt: msg.CreatedAt,
	}
	return e.emit(ctx, envelope)
}

// MessagePart emits a message_part envelope for a single structured part
// produced during a step.
func (e *Emitter) MessagePart(ctx context.Context, messageID int64, part models.MessagePart, role models.Role) Envelope {
	envelope := e.base(KindMessagePart)
	envelope.MessagePart = &MessagePartPayload{MessageID: messageID, Part: part, Role: role}
	return e.emit(ctx, envelope)
}

// NodeAdded emits a node_added envelope once a step's non-tool parts are
// complete.
func (e *Emitter) NodeAdded(ctx context.Context, messageID int64, node models.Node) Envelope {
	envelope := e.base(KindNodeAdded)
	envelope.NodeAdded = &NodeAddedPayload{MessageID: messageID, Node: node}
	return e.emit(ctx, envelope)
}

// TextChunk emits a text_chunk envelope carrying one piece of streamed
// text.
func (e *Emitter) TextChunk(ctx context.Context, messageID int64, chunk string, role models.Role) Envelope {
	envelope := e.base(KindTextChunk)
	envelope.TextChunk = &TextChunkPayload{MessageID: messageID, Chunk: chunk, Role: role}
	return e.emit(ctx, envelope)
}

// ToolStart emits a tool_start envelope when a tool call begins.
func (e *Emitter) ToolStart(ctx context.Context, messageID int64, toolName string, args []byte) Envelope {
	envelope := e.base(KindToolStart)
	envelope.ToolStart = &ToolStartPayload{MessageID: messageID, ToolName: toolName, Args: args}
	return e.emit(ctx, envelope)
}

// ToolComplete emits a tool_complete envelope when a tool call returns,
// whether it succeeded, errored, or was cancelled. Tool wrappers are
// responsible for calling this even on a caught exception, so every
// tool_start is always paired with a tool_complete.
func (e *Emitter) ToolComplete(ctx context.Context, messageID int64, toolName, result string, status ToolStatus, errorMessage string) Envelope {
	envelope := e.base(KindToolComplete)
	envelope.ToolComplete = &ToolCompletePayload{
		MessageID:    messageID,
		ToolName:     toolName,
		Result:       result,
		Status:       status,
		ErrorMessage: errorMessage,
	}
	return e.emit(ctx, envelope)
}

// MessageComplete emits a message_complete envelope when the AGENT
// message's final content/parts have been persisted.
func (e *Emitter) MessageComplete(ctx context.Context, msg *models.Message) Envelope {
	envelope := e.base(KindMessageComplete)
	envelope.MessageComplete = &MessageCompletePayload{
		ID:        msg.ID,
		Role:      msg.Role,
		ModelName: msg.ModelName,
		Timestamp: msg.FinalizedAt,
		CreatedAt: msg.CreatedAt,
	}
	return e.emit(ctx, envelope)
}

// Error emits a terminal error envelope.
func (e *Emitter) Error(ctx context.Context, err error) Envelope {
	return e.ErrorWithRequestID(ctx, err, "")
}

// ErrorWithRequestID emits a terminal error envelope echoing the
// triggering frame's client-supplied request id, if any.
func (e *Emitter) ErrorWithRequestID(ctx context.Context, err error, requestID string) Envelope {
	envelope := e.base(KindError)
	envelope.Error = &ErrorPayload{Error: err.Error(), ConversationID: e.conversationID, RequestID: requestID}
	return e.emit(ctx, envelope)
}
