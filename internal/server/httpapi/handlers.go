package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/mberzins/chatd/internal/common"
	"github.com/mberzins/chatd/internal/server/models"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createChatRequest struct {
	ChatName string `json:"chat_name"`
	IsPublic *bool  `json:"is_public"`
}

type chatIDRequest struct {
	ChatID int64 `json:"chat_id"`
}

type targetUserRequest struct {
	UserID int64 `json:"user_id"`
}

type sendMessageRequest struct {
	ChatID  int64  `json:"chat_id"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

type chatResponse struct {
	ChatID      int64  `json:"chat_id"`
	ChatName    string `json:"chat_name"`
	IsPublic    bool   `json:"is_public"`
	MemberCount int64  `json:"member_count"`
	CreatedBy   int64  `json:"created_by,omitempty"`
}

type messageResponse struct {
	MessageID  int64  `json:"message_id"`
	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	Timestamp  string `json:"timestamp"`
}

func toChatResponse(conv *models.Conversation) chatResponse {
	return chatResponse{
		ChatID:      conv.ID,
		ChatName:    conv.Name,
		IsPublic:    conv.Visibility == models.VisibilityPublic,
		MemberCount: conv.MemberCount,
		CreatedBy:   conv.CreatedBy,
	}
}

func toMessageResponse(msg *models.Message) messageResponse {
	return messageResponse{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		Type:       msg.Type,
		Timestamp:  msg.Timestamp.Format(time.RFC3339),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, err := s.service.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"message": "User registered successfully",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	token, user, err := s.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_token": token,
		"user_id":       user.ID,
		"message":       "Login successful",
	})
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request, user *models.User) {
	convs, err := s.service.ListUserConversations(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeChatList(w, convs)
}

func (s *Server) handleListAllChats(w http.ResponseWriter, r *http.Request, user *models.User) {
	convs, err := s.service.ListAllConversations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeChatList(w, convs)
}

func (s *Server) writeChatList(w http.ResponseWriter, convs []models.Conversation) {
	chats := make([]chatResponse, 0, len(convs))
	for i := range convs {
		chats = append(chats, toChatResponse(&convs[i]))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req createChatRequest
	if !s.decode(w, r, &req) {
		return
	}

	conv, err := s.service.CreateConversation(r.Context(), req.ChatName, user.ID, models.VisibilityPublic)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"chat_id": conv.ID,
		"message": "Chat created successfully",
	})
}

func (s *Server) handleCreateChatWithPrivacy(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req createChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.IsPublic == nil {
		s.writeError(w, r, common.ErrorValidation)
		return
	}

	visibility := models.VisibilityPrivate
	if *req.IsPublic {
		visibility = models.VisibilityPublic
	}

	conv, err := s.service.CreateConversation(r.Context(), req.ChatName, user.ID, visibility)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"chat_id":   conv.ID,
		"is_public": *req.IsPublic,
		"message":   "Chat created successfully",
	})
}

func (s *Server) handleSearchChat(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req chatIDRequest
	if !s.decode(w, r, &req) {
		return
	}

	conv, err := s.service.GetConversation(r.Context(), req.ChatID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toChatResponse(conv))
}

func (s *Server) handleJoinChat(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req chatIDRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.service.JoinConversation(r.Context(), user.ID, req.ChatID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"chat_id": req.ChatID,
		"message": "Successfully joined chat",
	})
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request, user *models.User) {
	chatID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req targetUserRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.service.Invite(r.Context(), chatID, user.ID, req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"message": "User invited successfully"})
}

// handleAddUser joins the target user through the regular join rules, so a
// member cannot smuggle someone into a private chat without an invitation.
func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request, user *models.User) {
	chatID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req targetUserRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.service.JoinConversation(r.Context(), req.UserID, chatID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"message": "User added to chat successfully"})
}

func (s *Server) handleLeaveChat(w http.ResponseWriter, r *http.Request, user *models.User) {
	chatID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.service.LeaveConversation(r.Context(), user.ID, chatID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"message": "Left chat successfully"})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request, user *models.User) {
	chatID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, common.ErrorValidation)
			return
		}
		limit = n
	}

	msgs, err := s.service.GetMessages(r.Context(), chatID, user.ID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, toMessageResponse(&msgs[i]))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req sendMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	msg, err := s.service.SendMessage(r.Context(), req.ChatID, user.ID, req.Content, req.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"message_id": msg.ID,
		"message":    "Message sent successfully",
	})
}

// handleValidateSession is a cheap liveness check for a held token. Unlike
// the authenticated routes it answers 200 either way; clients poll it to
// decide whether to re-login.
func (s *Server) handleValidateSession(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), bearerPrefix)

	valid, err := s.service.ValidateSession(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"valid": valid})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, r, common.ErrorValidation)
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, common.ErrorValidation)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error(context.Background(), "encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrorValidation):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrorForbidden):
		status = http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrorAlreadyExists):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			"request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
		msg = "server error"
	}

	s.writeJSON(w, status, map[string]any{"error": msg})
}
