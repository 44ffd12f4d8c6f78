// Package models holds the server-side domain types persisted by the
// repositories.
package models

import "time"

// User is a registered account. PasswordVerifier is an opaque string owned by
// the configured auth.PasswordVerifier; the rest of the server never
// interprets it. SessionToken/SessionExpiry hold the user's current session,
// overwritten on every login.
type User struct {
	ID               int64
	Username         string
	PasswordVerifier string
	Email            string
	SessionToken     string
	SessionExpiry    time.Time
	CreatedAt        time.Time
}
