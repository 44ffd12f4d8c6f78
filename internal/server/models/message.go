package models

import "time"

// DefaultMessageType is used when the sender does not specify a type tag.
const DefaultMessageType = "text"

// Message is one entry of a conversation's append-only log. SenderName is
// denormalized at write time so reads do not join against users. IDs come
// from a single database sequence and are strictly increasing within every
// conversation.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	SenderName     string
	Content        string
	Type           string
	Timestamp      time.Time
}
