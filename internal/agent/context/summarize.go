package context

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexus-agent/orchestrator/pkg/models"
)

// SummarizationConfig configures the summarization behavior.
type SummarizationConfig struct {
	// MaxMsgsBeforeSummary is the threshold, in messages not yet covered
	// by a summary, for triggering a new summarization pass. Default: 30.
	MaxMsgsBeforeSummary int

	// KeepRecentMessages is how many recent messages to keep un-summarized.
	// Default: 10.
	KeepRecentMessages int

	// MaxSummaryLength is the target length for summaries in characters.
	// Default: 2000.
	MaxSummaryLength int
}

// DefaultSummarizationConfig returns sensible defaults.
func DefaultSummarizationConfig() SummarizationConfig {
	return SummarizationConfig{
		MaxMsgsBeforeSummary: 30,
		KeepRecentMessages:   10,
		MaxSummaryLength:     2000,
	}
}

// SummaryProvider is the interface for generating summaries. This allows
// injecting a fake provider for testing.
type SummaryProvider interface {
	Summarize(ctx context.Context, messages []*models.Message, maxLength int) (string, error)
}

// Summarizer handles conversation summarization. Summaries are never
// persisted — the conversations/messages schema has no column for one —
// so a Summarizer recomputes its summary text on demand given the
// caller's record of how far a prior summary already reached
// (coversUntilID). Callers (the compactor) are expected to cache the
// returned summary and watermark in memory for the lifetime of the
// conversation and pass them back in on the next turn.
type Summarizer struct {
	provider SummaryProvider
	config   SummarizationConfig
}

// NewSummarizer creates a new summarizer with the given provider and config.
func NewSummarizer(provider SummaryProvider, config SummarizationConfig) *Summarizer {
	if config.MaxMsgsBeforeSummary <= 0 {
		config.MaxMsgsBeforeSummary = 30
	}
	if config.KeepRecentMessages <= 0 {
		config.KeepRecentMessages = 10
	}
	if config.MaxSummaryLength <= 0 {
		config.MaxSummaryLength = 2000
	}
	return &Summarizer{provider: provider, config: config}
}

// uncoveredMessages returns the suffix of history after the message with
// id coversUntilID (or the whole history if coversUntilID is 0, meaning
// no summary exists yet).
func uncoveredMessages(history []*models.Message, coversUntilID int64) []*models.Message {
	if coversUntilID == 0 {
		return history
	}
	for i, m := range history {
		if m.ID == coversUntilID {
			return history[i+1:]
		}
	}
	return history
}

// ShouldSummarize reports whether the messages not yet covered by a
// summary exceed MaxMsgsBeforeSummary.
func (s *Summarizer) ShouldSummarize(history []*models.Message, coversUntilID int64) bool {
	return len(uncoveredMessages(history, coversUntilID)) > s.config.MaxMsgsBeforeSummary
}

// Summarize produces a new synthetic summary message covering all but
// the most recent KeepRecentMessages of the currently-uncovered history,
// along with the id of the last message it now covers. Returns a nil
// message with coversUntilID unchanged (and a nil error) if no
// summarization is needed or there is nothing old enough to summarize yet.
func (s *Summarizer) Summarize(ctx context.Context, conversationID int64, history []*models.Message, coversUntilID int64) (*models.Message, int64, error) {
	if !s.ShouldSummarize(history, coversUntilID) {
		return nil, coversUntilID, nil
	}

	uncovered := uncoveredMessages(history, coversUntilID)
	if len(uncovered) <= s.config.KeepRecentMessages {
		return nil, coversUntilID, nil
	}
	toSummarize := uncovered[:len(uncovered)-s.config.KeepRecentMessages]

	content, err := s.provider.Summarize(ctx, toSummarize, s.config.MaxSummaryLength)
	if err != nil {
		return nil, coversUntilID, fmt.Errorf("generate summary: %w", err)
	}

	newCoversUntil := toSummarize[len(toSummarize)-1].ID
	summaryMsg := &models.Message{
		ConversationID: conversationID,
		Role:           models.RoleAgent,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	return summaryMsg, newCoversUntil, nil
}

// BuildSummarizationPrompt creates the prompt for summarizing messages.
// No code in this module calls it.
func BuildSummarizationPrompt(messages []*models.Message, maxLength int) string {
	var sb strings.Builder

	sb.WriteString("Please summarize the following conversation concisely. ")
	sb.WriteString(fmt.Sprintf("Keep the summary under %d characters. ", maxLength))
	sb.WriteString("Focus on:\n")
	sb.WriteString("- Key topics discussed\n")
	sb.WriteString("- Important decisions or conclusions\n")
	sb.WriteString("- Any pending tasks or questions\n")
	sb.WriteString("- Tool executions and their outcomes\n\n")
	sb.WriteString("Conversation:\n\n")

	for _, m := range messages {
		if m == nil {
			continue
		}

		sb.WriteString(fmt.Sprintf("[%s]: ", m.Role))
		if text := m.TextContent(); text != "" {
			sb.WriteString(text)
		}

		for _, tc := range m.ToolCallParts() {
			sb.WriteString(fmt.Sprintf("\n  [Called tool: %s]", tc.ToolName))
		}

		for _, tr := range m.ToolReturnParts() {
			content := ""
			if tr.Content != nil {
				content = *tr.Content
			}
			if len(content) > 200 {
				content = content[:200] + "..."
			}
			status := "success"
			if tr.IsError {
				status = "error"
			}
			sb.WriteString(fmt.Sprintf("\n  [Tool result (%s): %s]", status, content))
		}

		sb.WriteString("\n\n")
	}

	sb.WriteString("---\nProvide a concise summary:")
	return sb.String()
}
