package conversations

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
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

var convColumns = []string{"id", "name", "visibility", "created_by", "created_at", "count"}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+conversations\s*\(name,\s*visibility,\s*created_by\)\s+VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s+RETURNING\s+id,\s*created_at\s*$`

	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs("general", "public", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), now))

	conv := &models.Conversation{Name: "general", Visibility: models.VisibilityPublic, CreatedBy: 1}
	got, err := repo.Create(context.Background(), conv)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 5 || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected conversation: %+v", got)
	}
}

func TestGetByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+c\.id,.*count\(\*\).*FROM\s+conversations\s+c\s+WHERE\s+c\.id\s*=\s*\$1`

	now := time.Now()
	rows := sqlmock.NewRows(convColumns).
		AddRow(int64(5), "general", "public", int64(1), now, int64(3))
	mock.ExpectQuery(q).WithArgs(int64(5)).WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Name != "general" || got.Visibility != models.VisibilityPublic || got.MemberCount != 3 {
		t.Fatalf("unexpected conversation: %+v", got)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+conversations\s+c\s+WHERE\s+c\.id`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestListByMember(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+c\.id,.*JOIN\s+conversation_members\s+cm\s+ON\s+cm\.conversation_id\s*=\s*c\.id\s+WHERE\s+cm\.user_id\s*=\s*\$1\s+ORDER\s+BY\s+c\.id\s+DESC`

	now := time.Now()
	rows := sqlmock.NewRows(convColumns).
		AddRow(int64(8), "second", "private", int64(2), now, int64(2)).
		AddRow(int64(5), "first", "public", int64(1), now, int64(4))
	mock.ExpectQuery(q).WithArgs(int64(2)).WillReturnRows(rows)

	got, err := repo.ListByMember(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListByMember error: %v", err)
	}
	if len(got) != 2 || got[0].ID != 8 || got[1].ID != 5 {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestListByMember_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`JOIN\s+conversation_members`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(convColumns))

	got, err := repo.ListByMember(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListByMember error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
}

func TestListAll(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+c\.id,.*FROM\s+conversations\s+c\s+ORDER\s+BY\s+c\.id\s+DESC`

	now := time.Now()
	rows := sqlmock.NewRows(convColumns).
		AddRow(int64(5), "general", "public", int64(1), now, int64(4))
	mock.ExpectQuery(q).WillReturnRows(rows)

	got, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll error: %v", err)
	}
	if len(got) != 1 || got[0].MemberCount != 4 {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestAddMember(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+conversation_members\s*\(user_id,\s*conversation_id\)\s+VALUES\s*\(\$1,\s*\$2\)\s+ON\s+CONFLICT\s+DO\s+NOTHING\s*$`

	mock.ExpectExec(q).
		WithArgs(int64(2), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.AddMember(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
	if !inserted {
		t.Fatal("expected inserted=true")
	}
}

func TestAddMember_ConflictLosesQuietly(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+conversation_members`).
		WithArgs(int64(2), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.AddMember(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
	if inserted {
		t.Fatal("expected inserted=false when the row already exists")
	}
}

func TestRemoveMember(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+conversation_members\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+conversation_id\s*=\s*\$2\s*$`

	mock.ExpectExec(q).
		WithArgs(int64(2), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RemoveMember(context.Background(), 2, 5); err != nil {
		t.Fatalf("RemoveMember error: %v", err)
	}
}

func TestIsMember(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+1\s+FROM\s+conversation_members\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+conversation_id\s*=\s*\$2`

	mock.ExpectQuery(q).
		WithArgs(int64(2), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := repo.IsMember(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("IsMember error: %v", err)
	}
	if !ok {
		t.Fatal("expected member")
	}
}

func TestIsMember_NoRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+1\s+FROM\s+conversation_members`).
		WithArgs(int64(2), int64(5)).
		WillReturnError(sql.ErrNoRows)

	ok, err := repo.IsMember(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("IsMember error: %v", err)
	}
	if ok {
		t.Fatal("expected not a member")
	}
}

func TestAddToWhitelist(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+conversation_whitelist\s*\(conversation_id,\s*user_id,\s*invited_by\)\s+VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s+ON\s+CONFLICT\s+DO\s+NOTHING\s*$`

	mock.ExpectExec(q).
		WithArgs(int64(5), int64(2), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.AddToWhitelist(context.Background(), 5, 2, 1)
	if err != nil {
		t.Fatalf("AddToWhitelist error: %v", err)
	}
	if !inserted {
		t.Fatal("expected inserted=true")
	}
}

func TestIsWhitelisted_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+1\s+FROM\s+conversation_whitelist`).
		WithArgs(int64(2), int64(5)).
		WillReturnError(errors.New("db down"))

	_, err := repo.IsWhitelisted(context.Background(), 2, 5)
	if err == nil || errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
