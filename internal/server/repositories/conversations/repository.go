// Package conversations declares the repository contract for conversations
// and their membership/whitelist relations.
package conversations

import (
	"context"

	"github.com/mberzins/chatd/internal/server/models"
)

// Repository defines persistence operations for conversations. The pair
// primary keys on the membership and whitelist tables act as concurrency
// arbiters: AddMember and AddToWhitelist report whether a row was actually
// inserted so callers can treat a lost race as an idempotent success.
type Repository interface {
	// Create inserts a conversation and returns it with the
	// database-assigned ID. It does not touch membership or whitelist rows.
	Create(ctx context.Context, conv *models.Conversation) (*models.Conversation, error)

	// GetByID returns a conversation with its member count populated.
	GetByID(ctx context.Context, id int64) (*models.Conversation, error)

	// ListByMember returns the conversations the user belongs to, newest
	// first.
	ListByMember(ctx context.Context, userID int64) ([]models.Conversation, error)

	// ListAll returns every conversation, newest first.
	ListAll(ctx context.Context) ([]models.Conversation, error)

	// AddMember inserts a membership row. Returns false when the row already
	// existed.
	AddMember(ctx context.Context, userID, conversationID int64) (bool, error)

	// RemoveMember deletes a membership row. Removing a non-member is not an
	// error.
	RemoveMember(ctx context.Context, userID, conversationID int64) error

	// IsMember reports whether the user currently belongs to the
	// conversation.
	IsMember(ctx context.Context, userID, conversationID int64) (bool, error)

	// AddToWhitelist inserts a whitelist row recording who invited the user.
	// Returns false when the row already existed.
	AddToWhitelist(ctx context.Context, conversationID, userID, invitedBy int64) (bool, error)

	// IsWhitelisted reports whether the user is whitelisted for the
	// conversation.
	IsWhitelisted(ctx context.Context, userID, conversationID int64) (bool, error)
}
