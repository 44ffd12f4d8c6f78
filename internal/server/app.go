// Package server initializes and runs the chat server application. It opens
// the database, runs migrations, wires the repositories, session cache and
// membership authority into the chat service, and starts the HTTP API next to
// the background session sweeper.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mberzins/chatd/internal/logging"
	"github.com/mberzins/chatd/internal/server/auth"
	"github.com/mberzins/chatd/internal/server/config"
	"github.com/mberzins/chatd/internal/server/httpapi"
	"github.com/mberzins/chatd/internal/server/membership"
	"github.com/mberzins/chatd/internal/server/repositories/repomanager"
	"github.com/mberzins/chatd/internal/server/services"
	"github.com/mberzins/chatd/internal/server/sessions"
	"github.com/sethvargo/go-retry"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	service *services.ChatService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	// The database container may still be starting; ping with backoff
	// before giving up.
	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(1*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn(ctx, "Database not ready, retrying...", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	usersRepo := rm.Users(db)
	convsRepo := rm.Conversations(db)
	messagesRepo := rm.Messages(db)

	sessionCache := sessions.NewCache(usersRepo, cfg.SessionValidityDuration, logger)
	authority := membership.NewAuthority(usersRepo, convsRepo, logger)

	var verifier auth.PasswordVerifier = auth.PlainVerifier{}
	if cfg.UseBcrypt {
		verifier = auth.BcryptVerifier{}
	}

	svc := services.NewChatService(usersRepo, convsRepo, messagesRepo,
		sessionCache, authority, verifier, cfg, logger)

	return &App{config: cfg, logger: logger, db: db, service: svc}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.service, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// startSessionSweeper periodically evicts expired sessions from the cache so
// stale entries do not accumulate between logins.
func (app *App) startSessionSweeper(ctx context.Context) {
	ticker := time.NewTicker(app.config.SessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := app.service.CleanupExpiredSessions(ctx)
			if n > 0 {
				app.logger.Info(ctx, "Removed expired sessions", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startSessionSweeper(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "Closing database", "error", err)
	}
}
