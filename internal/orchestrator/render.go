package orchestrator

import (
	"github.com/nexus-agent/orchestrator/internal/agent"
	"github.com/nexus-agent/orchestrator/pkg/models"
)

// renderMessage flattens one history row into the provider's flat message
// shape: a USER row becomes its content verbatim; an AGENT row's parts
// become concatenated text plus any tool-call/tool-return pairs, falling
// back to Content when the row was finalized without a structured parts
// payload (matching §4.4's decode_history contract).
func renderMessage(msg *models.Message) agent.CompletionMessage {
	role := "user"
	if msg.Role == models.RoleAgent {
		role = "assistant"
	}

	if len(msg.Parts) == 0 {
		return agent.CompletionMessage{Role: role, Content: msg.Content}
	}

	rendered := agent.CompletionMessage{Role: role}
	for _, part := range msg.Parts {
		switch part.Kind {
		case models.PartUserPrompt, models.PartSystemPrompt:
			// Never persisted as part of a rendered history row; skip.
		case models.PartText:
			if part.Text != nil {
				rendered.Content += part.Text.Content
			}
		case models.PartThinking:
			// Thinking is not replayed back to the provider as context.
		case models.PartToolCall:
			if part.ToolCall != nil {
				rendered.ToolCalls = append(rendered.ToolCalls, agent.ToolCall{
					ID:    part.ToolCall.ToolCallID,
					Name:  part.ToolCall.ToolName,
					Input: part.ToolCall.Args,
				})
			}
		case models.PartToolReturn:
			if part.ToolReturn != nil {
				content := ""
				if part.ToolReturn.Content != nil {
					content = *part.ToolReturn.Content
				}
				rendered.ToolResults = append(rendered.ToolResults, agent.ToolResult{
					ToolCallID: part.ToolReturn.ToolCallID,
					Content:    content,
					IsError:    part.ToolReturn.IsError,
				})
			}
		}
	}

	if rendered.Content == "" && len(rendered.ToolCalls) == 0 && len(rendered.ToolResults) == 0 {
		rendered.Content = msg.Content
	}

	return rendered
}

// renderHistory renders an ordered slice of history rows for inclusion in
// a CompletionRequest.
func renderHistory(messages []*models.Message) []agent.CompletionMessage {
	rendered := make([]agent.CompletionMessage, 0, len(messages))
	for _, msg := range messages {
		rendered = append(rendered, renderMessage(msg))
	}
	return rendered
}

// canonicalToolResultContent renders a tool result's content the way
// encode_parts specifies for tool-return: an empty result is treated as
// absent (nil), anything else passes through as the tool's own string
// rendering (tools already canonicalize JSON results themselves before
// returning their Content).
func canonicalToolResultContent(raw string) *string {
	if raw == "" {
		return nil
	}
	return &raw
}
