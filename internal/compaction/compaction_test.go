package compaction

import "testing"

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name     string
		msg      *Message
		expected int
	}{
		{"nil message", nil, 0},
		{"empty message", &Message{}, 0},
		{"short content", &Message{Content: "Hello"}, 2},     // 5 chars / 4 = 1.25 -> 2
		{"exact multiple", &Message{Content: "12345678"}, 2}, // 8 chars / 4 = 2
		{"role has no bearing on size", &Message{Role: "agent", Content: "Hi"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EstimateTokens(tt.msg)
			if result != tt.expected {
				t.Errorf("EstimateTokens() = %d, want %d", result, tt.expected)
			}
		})
	}
}

func TestEstimateMessagesTokens(t *testing.T) {
	messages := []*Message{
		{Content: "Hello"},    // 2 tokens
		{Content: "World"},    // 2 tokens
		{Content: "12345678"}, // 2 tokens
	}

	result := EstimateMessagesTokens(messages)
	if result != 6 {
		t.Errorf("EstimateMessagesTokens() = %d, want 6", result)
	}

	if EstimateMessagesTokens(nil) != 0 {
		t.Error("EstimateMessagesTokens(nil) should return 0")
	}
}
