// Package context provides context management for agent conversations.
//
// This package handles:
//   - Context packing: selecting which messages to include in LLM requests
//   - Rolling summaries: compressing old history into a synthetic message
//   - Budget management: staying within token/char limits
package context

import (
	"github.com/nexus-agent/orchestrator/pkg/models"
)

// PackOptions configures how messages are packed into context.
type PackOptions struct {
	// MaxMessages is the hard cap on number of messages to include (e.g. 60).
	MaxMessages int

	// MaxChars is the approximate character budget (cheap proxy for tokens).
	// Default: 30000 (~7500 tokens at 4 chars/token).
	MaxChars int

	// MaxToolResultChars is the max chars per tool-return content. Longer
	// results are truncated. Default: 6000.
	MaxToolResultChars int

	// IncludeSummary controls whether to include the rolling summary.
	IncludeSummary bool
}

// DefaultPackOptions returns sensible defaults for context packing.
func DefaultPackOptions() PackOptions {
	return PackOptions{
		MaxMessages:        60,
		MaxChars:           30000,
		MaxToolResultChars: 6000,
		IncludeSummary:     true,
	}
}

// Packer selects and prepares messages for LLM context.
type Packer struct {
	opts PackOptions
}

// NewPacker creates a new context packer with the given options.
func NewPacker(opts PackOptions) *Packer {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 60
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 30000
	}
	if opts.MaxToolResultChars <= 0 {
		opts.MaxToolResultChars = 6000
	}
	return &Packer{opts: opts}
}

// Pack selects messages from history to fit within budget.
//
// The packed result includes, in order:
//  1. summary, a synthetic message holding the rolling compaction
//     summary (if IncludeSummary and summary is non-nil). It is never a
//     row from history — the persisted schema has no summary column, so
//     the compactor recomputes it on demand (see Summarizer) rather than
//     storing it.
//  2. Recent messages from history (newest first, up to budget).
//  3. incoming, the new user message for this turn.
//
// Tool-return content is truncated to MaxToolResultChars. Messages are
// selected from the end (most recent) backwards until either MaxMessages
// or MaxChars is reached.
func (p *Packer) Pack(history []*models.Message, incoming *models.Message, summary *models.Message) ([]*models.Message, error) {
	var result []*models.Message

	totalChars := 0
	totalMsgs := 0

	if incoming != nil {
		totalChars += p.messageChars(incoming)
		totalMsgs++
	}
	if p.opts.IncludeSummary && summary != nil {
		totalChars += p.messageChars(summary)
		totalMsgs++
	}

	// Select messages from the end (most recent) backwards. Build in
	// reverse order, then reverse once (O(n) instead of O(n²)).
	selectedReverse := make([]*models.Message, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m == nil {
			continue
		}
		msgChars := p.messageChars(m)

		if totalMsgs+1 > p.opts.MaxMessages {
			break
		}
		if totalChars+msgChars > p.opts.MaxChars {
			break
		}

		selectedReverse = append(selectedReverse, m)
		totalMsgs++
		totalChars += msgChars
	}

	selected := make([]*models.Message, len(selectedReverse))
	for i, m := range selectedReverse {
		selected[len(selectedReverse)-1-i] = m
	}

	if p.opts.IncludeSummary && summary != nil {
		result = append(result, summary)
	}
	for _, m := range selected {
		result = append(result, p.truncateToolReturns(m))
	}
	if incoming != nil {
		result = append(result, incoming)
	}

	return result, nil
}

// messageChars estimates the character count for a message.
func (p *Packer) messageChars(m *models.Message) int {
	if m == nil {
		return 0
	}
	chars := len(m.Content)
	for _, tc := range m.ToolCallParts() {
		chars += len(tc.ToolName) + len(tc.Args)
	}
	for _, tr := range m.ToolReturnParts() {
		if tr.Content != nil {
			chars += len(*tr.Content)
		}
	}
	return chars
}

// truncateToolReturns returns a copy of m with over-budget tool-return
// content truncated, or m itself if nothing needs truncation.
func (p *Packer) truncateToolReturns(m *models.Message) *models.Message {
	needsTruncation := false
	for _, p2 := range m.Parts {
		if p2.Kind == models.PartToolReturn && p2.ToolReturn != nil && p2.ToolReturn.Content != nil &&
			len(*p2.ToolReturn.Content) > p.opts.MaxToolResultChars {
			needsTruncation = true
			break
		}
	}
	if !needsTruncation {
		return m
	}

	clone := *m
	clone.Parts = make([]models.MessagePart, len(m.Parts))
	for i, part := range m.Parts {
		if part.Kind == models.PartToolReturn && part.ToolReturn != nil && part.ToolReturn.Content != nil &&
			len(*part.ToolReturn.Content) > p.opts.MaxToolResultChars {
			truncated := *part.ToolReturn
			truncatedContent := (*part.ToolReturn.Content)[:p.opts.MaxToolResultChars] + "\n...[truncated]"
			truncated.Content = &truncatedContent
			part.ToolReturn = &truncated
		}
		clone.Parts[i] = part
	}
	return &clone
}
