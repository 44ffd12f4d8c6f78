// Package messages declares the repository contract for the append-only
// message log.
package messages

import (
	"context"

	"github.com/mberzins/chatd/internal/server/models"
)

// Repository defines persistence operations for messages. The durable log is
// unbounded; any retention cap is applied on the read path only.
type Repository interface {
	// Add appends a message and returns it with the database-assigned ID and
	// timestamp.
	Add(ctx context.Context, msg *models.Message) (*models.Message, error)

	// ListByConversation returns up to limit messages of a conversation
	// ordered by strictly increasing ID.
	ListByConversation(ctx context.Context, conversationID int64, limit int) ([]models.Message, error)
}
