package context

import (
	"strings"
	"testing"

	"github.com/nexus-agent/orchestrator/pkg/models"
)

func toolCallMsg(id int64, toolCallID, toolName string) *models.Message {
	return &models.Message{
		ID:   id,
		Role: models.RoleAgent,
		Parts: []models.MessagePart{
			{Kind: models.PartToolCall, Seq: 1, ToolCall: &models.ToolCallPart{
				ToolName: toolName, ToolCallID: toolCallID,
			}},
		},
	}
}

func toolReturnMsg(id int64, toolCallID, content string) *models.Message {
	return &models.Message{
		ID:   id,
		Role: models.RoleAgent,
		Parts: []models.MessagePart{
			{Kind: models.PartToolReturn, Seq: 2, ToolReturn: &models.ToolReturnPart{
				ToolCallID: toolCallID, Content: &content,
			}},
		},
	}
}

func TestPruneContextMessagesNoopBelowSoftTrimRatio(t *testing.T) {
	settings := DefaultContextPruningSettings()
	messages := []*models.Message{userMsg(1, "hi"), agentMsg(2, "hello")}

	got := PruneContextMessages(messages, settings, 1_000_000)
	if len(got) != len(messages) {
		t.Fatalf("expected no pruning below soft trim ratio, got %d messages", len(got))
	}
}

func TestPruneContextMessagesSoftTrimsOldToolResults(t *testing.T) {
	settings := DefaultContextPruningSettings()
	settings.SoftTrim.MaxChars = 20
	settings.SoftTrim.HeadChars = 5
	settings.SoftTrim.TailChars = 5
	settings.KeepLastAgentTurns = 1
	settings.MinPrunableToolChars = 1 << 30 // keep hard-clear from firing

	longResult := strings.Repeat("x", 5000)
	messages := []*models.Message{
		userMsg(1, "find the answer"),
		toolCallMsg(2, "call_1", "search"),
		toolReturnMsg(3, "call_1", longResult),
		agentMsg(4, "here's what I found"),
		userMsg(5, "thanks"),
		agentMsg(6, "you're welcome"),
	}

	got := PruneContextMessages(messages, settings, 100)
	trimmed := got[2].ToolReturnParts()[0].Content
	if trimmed == nil || len(*trimmed) >= len(longResult) {
		t.Fatalf("expected tool result to be soft-trimmed, got length %d", len(*trimmed))
	}
	if !strings.Contains(*trimmed, "trimmed") {
		t.Fatalf("expected trim note in result, got %q", *trimmed)
	}
	// Original input must be untouched.
	if *messages[2].ToolReturnParts()[0].Content != longResult {
		t.Fatalf("PruneContextMessages mutated the input slice")
	}
}

func TestPruneContextMessagesHardClearsWhenOverBudget(t *testing.T) {
	settings := DefaultContextPruningSettings()
	settings.SoftTrim.MaxChars = 10
	settings.HardClearRatio = 0.1
	settings.MinPrunableToolChars = 10
	settings.KeepLastAgentTurns = 1

	longResult := strings.Repeat("y", 5000)
	messages := []*models.Message{
		userMsg(1, "find the answer"),
		toolCallMsg(2, "call_1", "search"),
		toolReturnMsg(3, "call_1", longResult),
		agentMsg(4, "you're welcome"),
	}

	got := PruneContextMessages(messages, settings, 100)
	cleared := got[2].ToolReturnParts()[0].Content
	if cleared == nil || *cleared != settings.HardClear.Placeholder {
		t.Fatalf("expected hard-clear placeholder, got %v", cleared)
	}
}

func TestWildcardMatch(t *testing.T) {
	tests := []struct {
		pattern, value string
		want           bool
	}{
		{"*", "anything", true},
		{"search", "search", true},
		{"search", "fetch", false},
		{"search_*", "search_web", true},
		{"*_web", "search_web", true},
		{"search_*_v2", "search_web_v2", true},
	}
	for _, tt := range tests {
		if got := wildcardMatch(tt.pattern, tt.value); got != tt.want {
			t.Errorf("wildcardMatch(%q, %q) = %v, want %v", tt.pattern, tt.value, got, tt.want)
		}
	}
}
