package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mberzins/chatd/internal/common"
	"github.com/mberzins/chatd/internal/server/models"
)

const bearerPrefix = "Bearer "

// authedHandler receives the user resolved from the request's session token.
type authedHandler func(w http.ResponseWriter, r *http.Request, user *models.User)

// withAuth extracts the Bearer token, resolves it through the session cache
// and rejects the request with 401 when the session is missing or stale.
// Storage failures keep their original error so writeError reports them as
// 500, not as a rejected credential.
func (s *Server) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			s.writeError(w, r, common.ErrorUnauthorized)
			return
		}

		token := strings.TrimPrefix(header, bearerPrefix)
		user, err := s.service.ResolveSession(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		next(w, r, user)
	}
}

type ctxKey int

const requestIDKey ctxKey = iota

// requestID returns the id the logging middleware assigned to the request,
// or "" outside a request.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// requestLogger assigns each request a correlation id before the handler
// runs, so log lines written during the request can carry the same id as the
// summary line.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		r = r.WithContext(ctx)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info(ctx, "request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
