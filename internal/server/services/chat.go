// Package services contains server-side business logic. ChatService is the
// composition root: every operation resolves authentication through the
// session cache, runs the relevant membership check, then reads or mutates
// durable storage.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/mberzins/chatd/internal/common"
	"github.com/mberzins/chatd/internal/logging"
	"github.com/mberzins/chatd/internal/server/auth"
	"github.com/mberzins/chatd/internal/server/config"
	"github.com/mberzins/chatd/internal/server/membership"
	"github.com/mberzins/chatd/internal/server/models"
	"github.com/mberzins/chatd/internal/server/repositories/conversations"
	"github.com/mberzins/chatd/internal/server/repositories/messages"
	"github.com/mberzins/chatd/internal/server/repositories/users"
	"github.com/mberzins/chatd/internal/server/sessions"
)

// ChatService orchestrates registration, login, conversations, and
// messaging. All operations are synchronous request/response with no
// retries; storage failures surface immediately.
type ChatService struct {
	users     users.Repository
	convs     conversations.Repository
	messages  messages.Repository
	sessions  *sessions.Cache
	authority *membership.Authority
	verifier  auth.PasswordVerifier

	recentMessageLimit int
	maxMessageLimit    int

	logger logging.Logger
}

func NewChatService(
	usersRepo users.Repository,
	convsRepo conversations.Repository,
	messagesRepo messages.Repository,
	sessionCache *sessions.Cache,
	authority *membership.Authority,
	verifier auth.PasswordVerifier,
	cfg *config.Config,
	logger logging.Logger,
) *ChatService {
	return &ChatService{
		users:              usersRepo,
		convs:              convsRepo,
		messages:           messagesRepo,
		sessions:           sessionCache,
		authority:          authority,
		verifier:           verifier,
		recentMessageLimit: cfg.RecentMessageLimit,
		maxMessageLimit:    cfg.MaxMessageLimit,
		logger:             logger.With("module", "chat_service"),
	}
}

// Register creates a new account. A taken username yields
// common.ErrorAlreadyExists; the unique constraint stays authoritative for
// racers that pass the pre-check simultaneously.
func (s *ChatService) Register(ctx context.Context, username, password, email string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, common.ErrorValidation
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, common.ErrorAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	verifier, err := s.verifier.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.users.Create(ctx, &models.User{
		Username:         username,
		PasswordVerifier: verifier,
		Email:            email,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "username", username)
	return user, nil
}

// Login verifies credentials and issues a session token. Unknown usernames
// and wrong passwords are indistinguishable to the caller.
func (s *ChatService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil, common.ErrorUnauthorized
		}
		return "", nil, err
	}

	if !s.verifier.Verify(user.PasswordVerifier, password) {
		return "", nil, common.ErrorUnauthorized
	}

	token, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID, "username", username)
	return token, user, nil
}

// ValidateSession reports whether the token belongs to a live session.
func (s *ChatService) ValidateSession(ctx context.Context, token string) (bool, error) {
	return s.sessions.Validate(ctx, token)
}

// ResolveSession returns the user owning a live session token.
func (s *ChatService) ResolveSession(ctx context.Context, token string) (*models.User, error) {
	return s.sessions.Resolve(ctx, token)
}

// CreateConversation makes a new conversation owned by creatorID.
func (s *ChatService) CreateConversation(ctx context.Context, name string, creatorID int64, visibility models.Visibility) (*models.Conversation, error) {
	if name == "" || !visibility.Valid() {
		return nil, common.ErrorValidation
	}
	return s.authority.Create(ctx, creatorID, name, visibility)
}

// JoinConversation admits userID per the membership rules.
func (s *ChatService) JoinConversation(ctx context.Context, userID, conversationID int64) error {
	return s.authority.Join(ctx, userID, conversationID)
}

// Invite whitelists inviteeID for a private conversation.
func (s *ChatService) Invite(ctx context.Context, conversationID, inviterID, inviteeID int64) error {
	return s.authority.Invite(ctx, conversationID, inviterID, inviteeID)
}

// LeaveConversation drops userID's membership.
func (s *ChatService) LeaveConversation(ctx context.Context, userID, conversationID int64) error {
	return s.authority.Leave(ctx, userID, conversationID)
}

// SendMessage appends a message to a conversation the sender belongs to.
// The sender's display name is denormalized into the message row at write
// time.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID int64, content, msgType string) (*models.Message, error) {
	if content == "" {
		return nil, common.ErrorValidation
	}
	if msgType == "" {
		msgType = models.DefaultMessageType
	}

	ok, err := s.authority.CanSend(ctx, senderID, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrorForbidden
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg, err := s.messages.Add(ctx, &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     sender.Username,
		Content:        content,
		Type:           msgType,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "message sent",
		"conversation_id", conversationID, "sender_id", senderID, "message_id", msg.ID)
	return msg, nil
}

// GetMessages returns up to limit messages of the conversation in strictly
// increasing ID order. A non-positive limit falls back to the configured
// recent-message view; the cap bounds the read only, never the durable log.
func (s *ChatService) GetMessages(ctx context.Context, conversationID, userID int64, limit int) ([]models.Message, error) {
	ok, err := s.authority.CanSend(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrorForbidden
	}

	if limit <= 0 {
		limit = s.recentMessageLimit
	}
	if limit > s.maxMessageLimit {
		limit = s.maxMessageLimit
	}

	return s.messages.ListByConversation(ctx, conversationID, limit)
}

// GetConversation returns a conversation summary with its member count.
func (s *ChatService) GetConversation(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	return s.convs.GetByID(ctx, conversationID)
}

// ListUserConversations returns the conversations userID belongs to.
func (s *ChatService) ListUserConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	return s.convs.ListByMember(ctx, userID)
}

// ListAllConversations returns every conversation, newest first.
func (s *ChatService) ListAllConversations(ctx context.Context) ([]models.Conversation, error) {
	return s.convs.ListAll(ctx)
}

// CleanupExpiredSessions sweeps expired entries out of the session cache and
// returns the number removed.
func (s *ChatService) CleanupExpiredSessions(ctx context.Context) int {
	swept := s.sessions.Cleanup()
	if swept > 0 {
		s.logger.Debug(ctx, "expired sessions swept", "count", swept)
	}
	return swept
}
