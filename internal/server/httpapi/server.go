// Package httpapi exposes the chat service over an HTTP/JSON API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mberzins/chatd/internal/logging"
	"github.com/mberzins/chatd/internal/server/models"
)

// Service is the part of the chat service the HTTP layer depends on.
type Service interface {
	Register(ctx context.Context, username, password, email string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, *models.User, error)
	ValidateSession(ctx context.Context, token string) (bool, error)
	ResolveSession(ctx context.Context, token string) (*models.User, error)
	CreateConversation(ctx context.Context, name string, creatorID int64, visibility models.Visibility) (*models.Conversation, error)
	JoinConversation(ctx context.Context, userID, conversationID int64) error
	Invite(ctx context.Context, conversationID, inviterID, inviteeID int64) error
	LeaveConversation(ctx context.Context, userID, conversationID int64) error
	SendMessage(ctx context.Context, conversationID, senderID int64, content, msgType string) (*models.Message, error)
	GetMessages(ctx context.Context, conversationID, userID int64, limit int) ([]models.Message, error)
	GetConversation(ctx context.Context, conversationID int64) (*models.Conversation, error)
	ListUserConversations(ctx context.Context, userID int64) ([]models.Conversation, error)
	ListAllConversations(ctx context.Context) ([]models.Conversation, error)
}

const shutdownTimeout = 5 * time.Second

type Server struct {
	address string
	service Service
	logger  logging.Logger
}

func NewServer(address string, service Service, logger logging.Logger) *Server {
	return &Server{
		address: address,
		service: service,
		logger:  logger.With("module", "http_server"),
	}
}

// Handler builds the full route table. Split out from Run so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	r.HandleFunc("/api/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/session/validate", s.handleValidateSession).Methods(http.MethodGet)

	r.HandleFunc("/api/chats", s.withAuth(s.handleListChats)).Methods(http.MethodGet)
	r.HandleFunc("/api/chats/all", s.withAuth(s.handleListAllChats)).Methods(http.MethodGet)
	r.HandleFunc("/api/chats/create", s.withAuth(s.handleCreateChat)).Methods(http.MethodPost)
	r.HandleFunc("/api/chats/create_with_privacy", s.withAuth(s.handleCreateChatWithPrivacy)).Methods(http.MethodPost)
	r.HandleFunc("/api/chats/search", s.withAuth(s.handleSearchChat)).Methods(http.MethodPost)
	r.HandleFunc("/api/chats/join", s.withAuth(s.handleJoinChat)).Methods(http.MethodPost)
	r.HandleFunc("/api/chats/{id}/invite", s.withAuth(s.handleInvite)).Methods(http.MethodPost)
	r.HandleFunc("/api/chats/{id}/add_user", s.withAuth(s.handleAddUser)).Methods(http.MethodPost)
	r.HandleFunc("/api/chats/{id}/leave", s.withAuth(s.handleLeaveChat)).Methods(http.MethodPost)
	r.HandleFunc("/api/chats/{id}/messages", s.withAuth(s.handleGetMessages)).Methods(http.MethodGet)
	r.HandleFunc("/api/messages", s.withAuth(s.handleSendMessage)).Methods(http.MethodPost)

	return r
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
