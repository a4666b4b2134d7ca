package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexus-agent/orchestrator/internal/agent"
	agentcontext "github.com/nexus-agent/orchestrator/internal/agent/context"
	"github.com/nexus-agent/orchestrator/pkg/models"
)

// providerSummaryAdapter turns an agent.LLMProvider into an
// agentcontext.SummaryProvider so the same provider driving a turn can also
// produce the rolling compaction summary.
type providerSummaryAdapter struct {
	provider agent.LLMProvider
	model    string
}

func (a *providerSummaryAdapter) Summarize(ctx context.Context, messages []*models.Message, maxLength int) (string, error) {
	var transcript strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.TextContent())
	}

	req := &agent.CompletionRequest{
		Model:  a.model,
		System: fmt.Sprintf("Summarize the following conversation in at most %d characters. Be terse and preserve decisions, open questions, and file paths.", maxLength),
		Messages: []agent.CompletionMessage{
			{Role: "user", Content: transcript.String()},
		},
		MaxTokens: maxLength/3 + 256,
	}

	chunks, err := a.provider.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	var out strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", fmt.Errorf("summarize: %w", chunk.Error)
		}
		out.WriteString(chunk.Text)
	}
	return out.String(), nil
}

var _ agentcontext.SummaryProvider = (*providerSummaryAdapter)(nil)
