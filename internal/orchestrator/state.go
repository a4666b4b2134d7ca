// Package orchestrator drives one turn of the per-connection state machine:
// receive a frame, ensure its conversation exists, persist the user
// message, load and optionally compact history, run the agent step loop
// against the configured provider and tools, and finalize the AGENT
// message — emitting envelopes at each transition.
package orchestrator

import (
	"time"

	"github.com/nexus-agent/orchestrator/pkg/models"
)

// Phase names one state of the per-turn state machine. Error is reachable
// from any phase and is represented by a returned error rather than a
// phase value, so the zero value of State never claims to be erroring.
type Phase string

const (
	PhaseRecv               Phase = "recv"
	PhaseEnsureConversation Phase = "ensure_conversation"
	PhasePersistUser        Phase = "persist_user"
	PhaseLoadHistory        Phase = "load_history"
	PhaseCompact            Phase = "compact"
	PhaseStartAgent         Phase = "start_agent"
	PhaseStepLoop           Phase = "step_loop"
	PhaseFinalize           Phase = "finalize"
	PhaseIdle               Phase = "idle"
)

// State is the turn's accumulated progress, threaded through step. It
// holds no I/O handles (no provider, no store, no channel) so step can run
// as a pure function in tests.
type State struct {
	Phase Phase

	ConversationID int64
	AgentMessageID int64

	// TurnParts accumulates every part (text/thinking/tool-call/
	// tool-return) produced so far this turn, in production order — this
	// becomes the finalized AGENT message's Parts.
	TurnParts []models.MessagePart

	ModelName string
	Timestamp time.Time

	Iteration     int
	MaxIterations int

	FinalOutput string
	Done        bool
}

// modelStepResult is one model call's decoded output: the text produced,
// any tool calls requested, and the model name that produced it. It is
// the only input step needs beyond the current State, keeping step a pure
// function of (State, modelStepResult) with no network or channel access.
type modelStepResult struct {
	text      string
	thinking  string
	toolCalls []pendingToolCall
	modelName string
}

type pendingToolCall struct {
	id    string
	name  string
	input []byte
}

func nextPartSeq(parts []models.MessagePart) uint64 {
	var max uint64
	for _, p := range parts {
		if p.Seq > max {
			max = p.Seq
		}
	}
	return max + 1
}
