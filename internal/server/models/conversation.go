package models

import "time"

// Visibility controls who may join a conversation.
type Visibility string

const (
	// VisibilityPublic conversations admit any registered user on join.
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate conversations admit only whitelisted users.
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is one of the known visibility values.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Conversation is a group chat. MemberCount is a read-side projection filled
// by list/summary queries, not a stored column.
type Conversation struct {
	ID          int64
	Name        string
	Visibility  Visibility
	CreatedBy   int64
	CreatedAt   time.Time
	MemberCount int64
}
