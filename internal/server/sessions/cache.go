// Package sessions implements session issuance and validation with an
// in-memory token cache backed by durable storage. The cache is an
// accelerator only; the users table remains the source of truth.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mberzins/chatd/internal/common"
	"github.com/mberzins/chatd/internal/logging"
	"github.com/mberzins/chatd/internal/server/models"
)

const tokenBytes = 32

// UserStore is the slice of the users repository the cache needs.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetBySessionToken(ctx context.Context, token string) (*models.User, error)
	UpdateSession(ctx context.Context, userID int64, token string, expiresAt time.Time) error
}

type entry struct {
	userID    int64
	expiresAt time.Time
}

// Cache maps session tokens to user IDs. Reads take the shared lock for the
// map lookup only; storage calls on a miss happen with no lock held, and the
// write lock is re-acquired just to memoize the result. A secondary index by
// user ID lets Issue evict the user's superseded token instead of leaving it
// resolvable until expiry.
type Cache struct {
	mu      sync.RWMutex
	byToken map[string]entry
	byUser  map[int64]string

	store  UserStore
	ttl    time.Duration
	logger logging.Logger
}

func NewCache(store UserStore, ttl time.Duration, logger logging.Logger) *Cache {
	return &Cache{
		byToken: make(map[string]entry),
		byUser:  make(map[int64]string),
		store:   store,
		ttl:     ttl,
		logger:  logger.With("module", "sessions"),
	}
}

// Issue generates a fresh opaque token for the user, persists it as the
// user's current session with expiry now+ttl, and installs it in the cache,
// evicting any previous token of the same user.
func (c *Cache) Issue(ctx context.Context, userID int64) (string, error) {
	token, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	expiresAt := time.Now().Add(c.ttl)

	if err := c.store.UpdateSession(ctx, userID, token, expiresAt); err != nil {
		return "", fmt.Errorf("persisting session: %w", err)
	}

	c.memoize(token, entry{userID: userID, expiresAt: expiresAt})

	c.logger.Debug(ctx, "session issued", "user_id", userID)
	return token, nil
}

// Validate reports whether the token resolves to a live session. The cache
// hit path is a map lookup plus a local expiry check; a miss falls through
// to storage and memoizes on success. The returned error is non-nil only for
// storage failures.
func (c *Cache) Validate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	c.mu.RLock()
	e, ok := c.byToken[token]
	c.mu.RUnlock()

	if ok && time.Now().Before(e.expiresAt) {
		return true, nil
	}

	if _, err := c.resolveFromStore(ctx, token); err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Resolve returns the user owning the token, or common.ErrorUnauthorized for
// an unknown or expired token. A cache hit still reads the user record by ID
// from storage; only the token→user resolution itself is accelerated.
func (c *Cache) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, common.ErrorUnauthorized
	}

	c.mu.RLock()
	e, ok := c.byToken[token]
	c.mu.RUnlock()

	if ok && time.Now().Before(e.expiresAt) {
		user, err := c.store.GetByID(ctx, e.userID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.ErrorUnauthorized
			}
			return nil, err
		}
		return user, nil
	}

	return c.resolveFromStore(ctx, token)
}

// Cleanup removes expired entries from the cache and returns how many were
// swept. The app runs this on a ticker.
func (c *Cache) Cleanup() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	swept := 0
	for token, e := range c.byToken {
		if now.Before(e.expiresAt) {
			continue
		}
		delete(c.byToken, token)
		if c.byUser[e.userID] == token {
			delete(c.byUser, e.userID)
		}
		swept++
	}

	return swept
}

// Len returns the number of cached entries, live or expired.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byToken)
}

// resolveFromStore consults durable storage with no lock held, memoizing the
// mapping when the session is live.
func (c *Cache) resolveFromStore(ctx context.Context, token string) (*models.User, error) {
	user, err := c.store.GetBySessionToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	if !time.Now().Before(user.SessionExpiry) {
		return nil, common.ErrorUnauthorized
	}

	c.memoize(token, entry{userID: user.ID, expiresAt: user.SessionExpiry})

	return user, nil
}

func (c *Cache) memoize(token string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.byUser[e.userID]; ok && old != token {
		delete(c.byToken, old)
	}
	c.byToken[token] = e
	c.byUser[e.userID] = token
}
