package messages

import (
	"context"
	"fmt"

	"github.com/mberzins/chatd/internal/dbx"
	"github.com/mberzins/chatd/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, msg *models.Message) (*models.Message, error) {

	query :=
		`INSERT INTO messages (conversation_id, sender_id, sender_name, content, type)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, timestamp
		 `

	err := r.db.QueryRowContext(ctx, query,
		msg.ConversationID, msg.SenderID, msg.SenderName, msg.Content, msg.Type).Scan(&msg.ID, &msg.Timestamp)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return msg, nil
}

func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID int64, limit int) ([]models.Message, error) {
	query :=
		`SELECT id, conversation_id, sender_id, sender_name, content, type, timestamp
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY id ASC
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.SenderName, &msg.Content, &msg.Type, &msg.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		msgs = append(msgs, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return msgs, nil
}
