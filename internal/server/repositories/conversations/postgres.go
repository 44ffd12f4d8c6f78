package conversations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mberzins/chatd/internal/common"
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

func (r *PostgresRepository) Create(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {

	query :=
		`INSERT INTO conversations (name, visibility, created_by)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		conv.Name, string(conv.Visibility), conv.CreatedBy).Scan(&conv.ID, &conv.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return conv, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Conversation, error) {
	query :=
		`SELECT c.id, c.name, c.visibility, c.created_by, c.created_at,
		        (SELECT count(*) FROM conversation_members m WHERE m.conversation_id = c.id)
		 FROM conversations c
		 WHERE c.id = $1
		 `

	conv := &models.Conversation{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID, &conv.Name, &conv.Visibility, &conv.CreatedBy, &conv.CreatedAt, &conv.MemberCount)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return conv, nil
}

func (r *PostgresRepository) ListByMember(ctx context.Context, userID int64) ([]models.Conversation, error) {
	query :=
		`SELECT c.id, c.name, c.visibility, c.created_by, c.created_at,
		        (SELECT count(*) FROM conversation_members m WHERE m.conversation_id = c.id)
		 FROM conversations c
		 JOIN conversation_members cm ON cm.conversation_id = c.id
		 WHERE cm.user_id = $1
		 ORDER BY c.id DESC
		 `

	return r.listConversations(ctx, query, userID)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]models.Conversation, error) {
	query :=
		`SELECT c.id, c.name, c.visibility, c.created_by, c.created_at,
		        (SELECT count(*) FROM conversation_members m WHERE m.conversation_id = c.id)
		 FROM conversations c
		 ORDER BY c.id DESC
		 `

	return r.listConversations(ctx, query)
}

func (r *PostgresRepository) AddMember(ctx context.Context, userID, conversationID int64) (bool, error) {
	query :=
		`INSERT INTO conversation_members (user_id, conversation_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `

	return r.conditionalInsert(ctx, query, userID, conversationID)
}

func (r *PostgresRepository) RemoveMember(ctx context.Context, userID, conversationID int64) error {
	query :=
		`DELETE FROM conversation_members
		 WHERE user_id = $1 AND conversation_id = $2
		 `

	if _, err := r.db.ExecContext(ctx, query, userID, conversationID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, userID, conversationID int64) (bool, error) {
	query :=
		`SELECT 1 FROM conversation_members
		 WHERE user_id = $1 AND conversation_id = $2
		 `

	return r.exists(ctx, query, userID, conversationID)
}

func (r *PostgresRepository) AddToWhitelist(ctx context.Context, conversationID, userID, invitedBy int64) (bool, error) {
	query :=
		`INSERT INTO conversation_whitelist (conversation_id, user_id, invited_by)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING
		 `

	return r.conditionalInsert(ctx, query, conversationID, userID, invitedBy)
}

func (r *PostgresRepository) IsWhitelisted(ctx context.Context, userID, conversationID int64) (bool, error) {
	query :=
		`SELECT 1 FROM conversation_whitelist
		 WHERE user_id = $1 AND conversation_id = $2
		 `

	return r.exists(ctx, query, userID, conversationID)
}

// conditionalInsert runs an INSERT ... ON CONFLICT DO NOTHING and reports
// whether a row was written. The uniqueness constraint arbitrates concurrent
// writers: the loser sees false without an error.
func (r *PostgresRepository) conditionalInsert(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return affected > 0, nil
}

func (r *PostgresRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) listConversations(ctx context.Context, query string, args ...any) ([]models.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		err := rows.Scan(&conv.ID, &conv.Name, &conv.Visibility, &conv.CreatedBy, &conv.CreatedAt, &conv.MemberCount)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		convs = append(convs, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return convs, nil
}
