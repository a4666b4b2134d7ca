package exec

import "context"

type conversationIDKey struct{}

// WithConversationID attaches the conversation id the tool call belongs
// to, so command_queue lanes can be serialized per conversation instead
// of globally.
func WithConversationID(ctx context.Context, conversationID int64) context.Context {
	return context.WithValue(ctx, conversationIDKey{}, conversationID)
}

// ConversationIDFromContext extracts the conversation id set by
// WithConversationID, or 0 if absent.
func ConversationIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(conversationIDKey{}).(int64)
	return id
}
