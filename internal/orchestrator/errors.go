package orchestrator

import (
	"errors"
	"strconv"
)

// ErrEmptyContent is the InvalidFrame condition: a turn frame arrived
// with no content.
var ErrEmptyContent = errors.New("message content is required")

// ErrConversationNotFound is the UnknownConversation condition: a frame
// named a conversation_id with no matching row.
var ErrConversationNotFound = errors.New("conversation not found")

// AgentFatalError reports that the turn must be abandoned: either the
// iteration budget ran out or the model call failed (Cause says which).
// AgentMessageID names the empty AGENT row HandleTurn inserted at
// StartAgent; HandleTurn has already deleted it before returning this
// error, per the error propagation policy's "the empty row does not
// persist" rule: InvalidFrame/UnknownConversation/InvalidPath stay on
// the connection, AgentFatal rolls back and disconnects.
type AgentFatalError struct {
	Iteration      int
	ConversationID int64
	AgentMessageID int64
	Cause          error
}

func (e *AgentFatalError) Error() string {
	return "agent fatal: retry budget exhausted at iteration " + strconv.Itoa(e.Iteration) + ": " + e.Cause.Error()
}

func (e *AgentFatalError) Unwrap() error { return e.Cause }
