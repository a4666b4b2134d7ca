package context

import "testing"

func TestGetModelContextWindow_ExactMatch(t *testing.T) {
	tokens, ok := GetModelContextWindow("gpt-4o")
	if !ok || tokens != 128000 {
		t.Fatalf("GetModelContextWindow(gpt-4o) = %d, %v; want 128000, true", tokens, ok)
	}
}

func TestGetModelContextWindow_PrefixMatch(t *testing.T) {
	tokens, ok := GetModelContextWindow("gpt-4-turbo-preview")
	if !ok || tokens != 128000 {
		t.Fatalf("GetModelContextWindow(gpt-4-turbo-preview) = %d, %v; want 128000, true", tokens, ok)
	}
}

func TestGetModelContextWindow_LongestPrefixWins(t *testing.T) {
	tokens, ok := GetModelContextWindow("gpt-4-32k-0613")
	if !ok || tokens != 32768 {
		t.Fatalf("GetModelContextWindow(gpt-4-32k-0613) = %d, %v; want 32768, true", tokens, ok)
	}
}

func TestGetModelContextWindow_Unknown(t *testing.T) {
	if _, ok := GetModelContextWindow("some-unreleased-model"); ok {
		t.Fatal("expected unknown model to report ok=false")
	}
}
