// Package store implements the durable conversation/message persistence
// layer (conversations are created lazily, messages are appended and
// later finalized in place).
package store

import (
	"context"
	"errors"

	"github.com/nexus-agent/orchestrator/pkg/models"
)

// ErrNotFound is returned when a conversation or message lookup misses.
var ErrNotFound = errors.New("history: not found")

// Store is the persistence interface for conversations and messages. A
// Turn endpoint handler uses it to create conversations lazily, insert
// the pending AGENT message row at the start of a run, and finalize it
// at the end.
type Store interface {
	// CreateConversation inserts a new conversation row, assigning Title
	// the default if empty, and populating ID/CreatedAt/UpdatedAt.
	CreateConversation(ctx context.Context, conv *models.Conversation) error

	// GetConversation fetches a conversation by id. Returns ErrNotFound
	// if no row exists.
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)

	// ListConversations returns every conversation row, most recently
	// updated first. Used only by the HTTP auxiliary surface, never by
	// the turn path.
	ListConversations(ctx context.Context) ([]*models.Conversation, error)

	// TouchConversation updates a conversation's updated_at to now.
	TouchConversation(ctx context.Context, id int64) error

	// DeleteConversation deletes a conversation and cascades to its
	// messages.
	DeleteConversation(ctx context.Context, id int64) error

	// InsertMessage inserts a new message row, populating ID/CreatedAt.
	// Used both for USER messages (Content set, no Parts) and for the
	// pending AGENT row inserted at the start of a run (Content empty,
	// Parts nil).
	InsertMessage(ctx context.Context, msg *models.Message) error

	// FinalizeMessage updates an existing AGENT message row in place with
	// its final content, parts, model name and FinalizedAt.
	FinalizeMessage(ctx context.Context, msg *models.Message) error

	// DeleteMessage removes a single message row, used to roll back the
	// empty AGENT row a turn inserted at StartAgent when the turn never
	// reaches Finalize. A no-op (not an error) if id does not exist.
	DeleteMessage(ctx context.Context, id int64) error

	// ListMessages returns a conversation's messages in creation order.
	// If limit > 0, only the most recent limit messages are returned
	// (still in ascending order).
	ListMessages(ctx context.Context, conversationID int64, limit int) ([]*models.Message, error)
}
