package orchestrator

import (
	"time"

	"github.com/nexus-agent/orchestrator/pkg/models"
)

// step is the pure transition function driving StepLoop: given the
// current State and the outcome of the model call the caller just made,
// it decides the next State, the non-tool parts produced this step (for a
// node_added envelope), and whether the turn is finished. It performs no
// I/O and makes no tool calls — those are the driver loop's job, which
// calls step once per iteration and folds the result back in.
//
// Collapsing the loop's phases into a single pure function keeps the
// transition logic testable without a channel or goroutine.
func step(s State, result modelStepResult) (State, []models.MessagePart, bool) {
	next := s
	next.Iteration++
	if result.modelName != "" {
		next.ModelName = result.modelName
	}
	next.Timestamp = time.Now()

	var stepParts []models.MessagePart

	if result.thinking != "" {
		part := models.MessagePart{
			Kind: models.PartThinking,
			Seq:  nextPartSeq(next.TurnParts),
			Thinking: &models.ThinkingPart{
				Content: result.thinking,
			},
		}
		next.TurnParts = append(next.TurnParts, part)
		stepParts = append(stepParts, part)
	}

	if result.text != "" {
		part := models.MessagePart{
			Kind: models.PartText,
			Seq:  nextPartSeq(next.TurnParts),
			Text: &models.TextPart{Content: result.text},
		}
		next.TurnParts = append(next.TurnParts, part)
		stepParts = append(stepParts, part)
	}

	if len(result.toolCalls) == 0 {
		next.Done = true
		next.FinalOutput = result.text
		return next, stepParts, true
	}

	return next, stepParts, false
}

// appendToolCall records a tool-call part in the turn's accumulated parts.
// Tool-call/tool-return parts never appear in a node_added envelope (the
// spec excludes them from Node), so this does not return step parts.
func appendToolCall(s *State, call pendingToolCall) models.MessagePart {
	part := models.MessagePart{
		Kind: models.PartToolCall,
		Seq:  nextPartSeq(s.TurnParts),
		ToolCall: &models.ToolCallPart{
			ToolName:   call.name,
			Args:       call.input,
			ToolCallID: call.id,
		},
	}
	s.TurnParts = append(s.TurnParts, part)
	return part
}

// appendToolReturn records a tool-return part paired with its tool-call.
func appendToolReturn(s *State, callID, toolName string, content *string, isError bool) models.MessagePart {
	part := models.MessagePart{
		Kind: models.PartToolReturn,
		Seq:  nextPartSeq(s.TurnParts),
		ToolReturn: &models.ToolReturnPart{
			ToolName:   toolName,
			ToolCallID: callID,
			Content:    content,
			IsError:    isError,
		},
	}
	s.TurnParts = append(s.TurnParts, part)
	return part
}
