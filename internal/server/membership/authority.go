// Package membership decides who may create, join, leave, be invited to, and
// post in a conversation, based on its visibility and the membership and
// whitelist relations.
//
// Join and invite are check-then-act over two storage operations with no
// transaction between them. The pair primary keys arbitrate concurrent
// racers: when two joins for the same (user, conversation) both pass the
// check, the second insert is a no-op and both callers are reported
// successful, which is the intended idempotent outcome.
package membership

import (
	"context"
	"fmt"

	"github.com/mberzins/chatd/internal/common"
	"github.com/mberzins/chatd/internal/logging"
	"github.com/mberzins/chatd/internal/server/models"
	"github.com/mberzins/chatd/internal/server/repositories/conversations"
	"github.com/mberzins/chatd/internal/server/repositories/users"
)

// Authority evaluates membership rules against current conversation state.
type Authority struct {
	users  users.Repository
	convs  conversations.Repository
	logger logging.Logger
}

func NewAuthority(users users.Repository, convs conversations.Repository, logger logging.Logger) *Authority {
	return &Authority{
		users:  users,
		convs:  convs,
		logger: logger.With("module", "membership"),
	}
}

// Create births a conversation with the creator as a member and, for private
// conversations, on the whitelist. The three inserts run without a wrapping
// transaction; each step is idempotent, and a crash between them leaves
// partial state that callers must tolerate.
func (a *Authority) Create(ctx context.Context, creatorID int64, name string, visibility models.Visibility) (*models.Conversation, error) {
	if _, err := a.users.GetByID(ctx, creatorID); err != nil {
		return nil, err
	}

	conv, err := a.convs.Create(ctx, &models.Conversation{
		Name:       name,
		Visibility: visibility,
		CreatedBy:  creatorID,
	})
	if err != nil {
		return nil, err
	}

	if _, err := a.convs.AddMember(ctx, creatorID, conv.ID); err != nil {
		return nil, fmt.Errorf("adding creator to conversation %d: %w", conv.ID, err)
	}
	conv.MemberCount = 1

	if visibility == models.VisibilityPrivate {
		if _, err := a.convs.AddToWhitelist(ctx, conv.ID, creatorID, creatorID); err != nil {
			return nil, fmt.Errorf("whitelisting creator of conversation %d: %w", conv.ID, err)
		}
	}

	a.logger.Info(ctx, "conversation created",
		"conversation_id", conv.ID, "visibility", string(visibility), "created_by", creatorID)

	return conv, nil
}

// Join admits the user to the conversation. Public conversations admit
// anyone not already a member; private ones require a whitelist entry.
// An existing membership yields common.ErrorAlreadyExists, a missing
// whitelist entry common.ErrorForbidden.
func (a *Authority) Join(ctx context.Context, userID, conversationID int64) error {
	if _, err := a.users.GetByID(ctx, userID); err != nil {
		return err
	}

	conv, err := a.convs.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}

	member, err := a.convs.IsMember(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if member {
		return common.ErrorAlreadyExists
	}

	if conv.Visibility == models.VisibilityPrivate {
		listed, err := a.convs.IsWhitelisted(ctx, userID, conversationID)
		if err != nil {
			return err
		}
		if !listed {
			return common.ErrorForbidden
		}
	}

	// A concurrent join may have won between the check and here; the
	// constraint swallows the duplicate and both callers succeed.
	if _, err := a.convs.AddMember(ctx, userID, conversationID); err != nil {
		return err
	}

	a.logger.Info(ctx, "user joined conversation", "user_id", userID, "conversation_id", conversationID)
	return nil
}

// Invite places invitee on the whitelist of a private conversation. Only
// current members may invite, and public conversations reject invitations.
// Re-inviting an already-listed user is an idempotent success.
func (a *Authority) Invite(ctx context.Context, conversationID, inviterID, inviteeID int64) error {
	conv, err := a.convs.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}

	if conv.Visibility == models.VisibilityPublic {
		return common.ErrorForbidden
	}

	member, err := a.convs.IsMember(ctx, inviterID, conversationID)
	if err != nil {
		return err
	}
	if !member {
		return common.ErrorForbidden
	}

	if _, err := a.users.GetByID(ctx, inviteeID); err != nil {
		return err
	}

	if _, err := a.convs.AddToWhitelist(ctx, conversationID, inviteeID, inviterID); err != nil {
		return err
	}

	a.logger.Info(ctx, "user invited",
		"conversation_id", conversationID, "inviter_id", inviterID, "invitee_id", inviteeID)
	return nil
}

// CanSend reports whether the user may read or post in the conversation,
// which is exactly current membership. Whitelist entries alone grant joining,
// not sending; and once joined, a later whitelist removal does not revoke
// membership.
func (a *Authority) CanSend(ctx context.Context, userID, conversationID int64) (bool, error) {
	return a.convs.IsMember(ctx, userID, conversationID)
}

// Leave removes the user's membership. Leaving a conversation the user is
// not in is not an error.
func (a *Authority) Leave(ctx context.Context, userID, conversationID int64) error {
	if _, err := a.convs.GetByID(ctx, conversationID); err != nil {
		return err
	}
	return a.convs.RemoveMember(ctx, userID, conversationID)
}
