package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mberzins/chatd/internal/common"
	"github.com/mberzins/chatd/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userColumns = []string{"id", "username", "password_verifier", "email", "session_token", "session_expiry", "created_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*password_verifier,\s*email\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id,\s*created_at\s*$`

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now)
	mock.ExpectQuery(q).
		WithArgs("alice", "pw1", "alice@example.com").
		WillReturnRows(rows)

	u := &models.User{Username: "alice", PasswordVerifier: "pw1", Email: "alice@example.com"}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 42 || got.Username != "alice" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("alice", "pw1", "").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.User{Username: "alice", PasswordVerifier: "pw1"})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("expected ErrorAlreadyExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("alice", "pw1", "").
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Username: "alice", PasswordVerifier: "pw1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByUsername_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*username,\s*password_verifier,\s*email,\s*session_token,\s*session_expiry,\s*created_at\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s*$`

	now := time.Now()
	rows := sqlmock.NewRows(userColumns).
		AddRow(int64(1), "alice", "pw1", "alice@example.com", "tok", now.Add(time.Hour), now)
	mock.ExpectQuery(q).
		WithArgs("alice").
		WillReturnRows(rows)

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername error: %v", err)
	}
	if got.ID != 1 || got.Username != "alice" || got.SessionToken != "tok" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByUsername_NullableColumns(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(userColumns).
		AddRow(int64(1), "alice", "pw1", nil, nil, nil, time.Now())
	mock.ExpectQuery(`SELECT\s+.*\s+FROM\s+users\s+WHERE\s+username`).
		WithArgs("alice").
		WillReturnRows(rows)

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername error: %v", err)
	}
	if got.Email != "" || got.SessionToken != "" || !got.SessionExpiry.IsZero() {
		t.Fatalf("expected zero values for NULL columns, got %+v", got)
	}
}

func TestGetByUsername_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+.*\s+FROM\s+users\s+WHERE\s+username`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestGetBySessionToken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+.*\s+FROM\s+users\s+WHERE\s+session_token\s*=\s*\$1`

	now := time.Now()
	rows := sqlmock.NewRows(userColumns).
		AddRow(int64(7), "bob", "pw2", nil, "tok-7", now.Add(time.Hour), now)
	mock.ExpectQuery(q).
		WithArgs("tok-7").
		WillReturnRows(rows)

	got, err := repo.GetBySessionToken(context.Background(), "tok-7")
	if err != nil {
		t.Fatalf("GetBySessionToken error: %v", err)
	}
	if got.ID != 7 || got.SessionToken != "tok-7" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestUpdateSession_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+session_token\s*=\s*\$1,\s*session_expiry\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$3\s*$`

	expiry := time.Now().Add(time.Hour)
	mock.ExpectExec(q).
		WithArgs("tok", expiry, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateSession(context.Background(), 1, "tok", expiry); err != nil {
		t.Fatalf("UpdateSession error: %v", err)
	}
}

func TestUpdateSession_UnknownUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expiry := time.Now().Add(time.Hour)
	mock.ExpectExec(`UPDATE\s+users\s+SET\s+session_token`).
		WithArgs("tok", expiry, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateSession(context.Background(), 99, "tok", expiry)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}
