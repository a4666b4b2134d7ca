// Package codec repairs and renders persisted AGENT messages: it closes
// tool-call/tool-return gaps left by a run that was interrupted
// mid-execution, and renders a message's parts into the flat message
// shape a provider's wire format expects.
package codec

import (
	"fmt"

	"github.com/nexus-agent/orchestrator/pkg/models"
)

// RepairReport summarizes what RepairToolCallPairing changed.
type RepairReport struct {
	// Repaired is true if any synthetic tool-return parts were added.
	Repaired bool
	// SyntheticToolCallIDs lists the tool_call_ids that got a synthetic
	// error tool-return appended.
	SyntheticToolCallIDs []string
}

// RepairToolCallPairing ensures every tool-call part in msg has a
// matching tool-return part, appending a synthetic error tool-return for
// any tool-call left dangling by a run that crashed or was cancelled
// mid-tool-execution. msg is not mutated; a repaired copy is returned
// when repair was needed, otherwise msg itself.
func RepairToolCallPairing(msg *models.Message) (*models.Message, RepairReport) {
	missing := msg.UnmatchedToolCallIDs()
	if len(missing) == 0 {
		return msg, RepairReport{}
	}

	toolNames := make(map[string]string, len(missing))
	for _, tc := range msg.ToolCallParts() {
		toolNames[tc.ToolCallID] = tc.ToolName
	}

	clone := *msg
	clone.Parts = append([]models.MessagePart{}, msg.Parts...)

	seq := nextSeq(clone.Parts)
	for _, id := range missing {
		errMsg := fmt.Sprintf("tool call %q (%s) never completed: no result was recorded before the run ended", id, toolNames[id])
		clone.Parts = append(clone.Parts, models.MessagePart{
			Kind: models.PartToolReturn,
			Seq:  seq,
			ToolReturn: &models.ToolReturnPart{
				ToolName:   toolNames[id],
				ToolCallID: id,
				Content:    &errMsg,
				IsError:    true,
			},
		})
		seq++
	}

	return &clone, RepairReport{Repaired: true, SyntheticToolCallIDs: missing}
}

func nextSeq(parts []models.MessagePart) uint64 {
	var max uint64
	for _, p := range parts {
		if p.Seq > max {
			max = p.Seq
		}
	}
	return max + 1
}

// RepairHistory runs RepairToolCallPairing over every AGENT message in a
// conversation's history, returning the repaired slice and the combined
// count of synthetic tool-returns inserted. USER messages pass through
// unchanged.
func RepairHistory(messages []*models.Message) ([]*models.Message, int) {
	out := make([]*models.Message, len(messages))
	added := 0
	for i, msg := range messages {
		if msg.Role != models.RoleAgent {
			out[i] = msg
			continue
		}
		repaired, report := RepairToolCallPairing(msg)
		out[i] = repaired
		added += len(report.SyntheticToolCallIDs)
	}
	return out, added
}
