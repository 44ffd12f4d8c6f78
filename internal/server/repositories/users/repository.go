// Package users declares the repository contract for user accounts and their
// current session columns.
package users

import (
	"context"
	"time"

	"github.com/mberzins/chatd/internal/server/models"
)

// Repository defines persistence operations for users.
type Repository interface {
	// Create inserts a new user and returns it with the database-assigned ID.
	// A duplicate username yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByUsername looks a user up by username.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// GetByID looks a user up by ID.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetBySessionToken looks a user up by their current session token.
	GetBySessionToken(ctx context.Context, token string) (*models.User, error)

	// UpdateSession overwrites the user's current session token and expiry.
	// Any previously issued token stops resolving at the store.
	UpdateSession(ctx context.Context, userID int64, token string, expiresAt time.Time) error
}
