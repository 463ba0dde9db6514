package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/minitwit/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db, WithClock(func() time.Time { return fixedNow })), mock, db
}

const (
	lockUserQuery   = `(?s)^SELECT\s+id\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+KEY\s+SHARE\s*$`
	insertQuery     = `(?s)^INSERT\s+INTO\s+refresh_tokens\s*\(token,\s*token_id,\s*user_id,\s*expires_at,\s*used,\s*invalidated\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*FALSE,\s*FALSE\)\s*$`
	fetchQuery      = `(?s)^SELECT\s+token,\s*token_id,\s*user_id,\s*expires_at,\s*used,\s*invalidated\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s*$`
	markUsedQuery   = `^UPDATE refresh_tokens SET used = TRUE WHERE token = \$1 AND used = FALSE$`
	markUnusedQuery = `^UPDATE refresh_tokens SET used = FALSE WHERE token = \$1$`
	usedQuery       = `^SELECT used FROM refresh_tokens WHERE token = \$1$`
	sweepQuery      = `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expires_at\s*<=\s*\$1\s*$`
)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := fixedNow.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserQuery).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectExec(insertQuery).
		WithArgs("secret", "tid", "u1", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), "tid", "u1", "secret", exp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_UnknownUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserQuery).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), "tid", "ghost", "secret", fixedNow)
	if !errors.Is(err, common.ErrorInvalidUserID) {
		t.Fatalf("want common.ErrorInvalidUserID, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_MalformedUserID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserQuery).
		WithArgs("xyz").
		WillReturnError(&pgconn.PgError{Code: "22P02"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), "tid", "xyz", "secret", fixedNow)
	if !errors.Is(err, common.ErrorInvalidUserID) {
		t.Fatalf("want common.ErrorInvalidUserID, got %v", err)
	}
}

func TestCreate_ForeignKeyViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserQuery).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectExec(insertQuery).
		WithArgs("secret", "tid", "u1", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), "tid", "u1", "secret", fixedNow)
	if !errors.Is(err, common.ErrorInvalidUserID) {
		t.Fatalf("want common.ErrorInvalidUserID, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserQuery).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	dbDown := errors.New("db down")
	mock.ExpectExec(insertQuery).
		WithArgs("secret", "tid", "u1", sqlmock.AnyArg()).
		WillReturnError(dbDown)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), "tid", "u1", "secret", fixedNow)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if !errors.Is(err, dbDown) {
		t.Fatalf("driver error must stay reachable with errors.Is, got %v", err)
	}
	if errors.Is(err, common.ErrorInvalidUserID) {
		t.Fatalf("infrastructure failure must not look like an invalid user")
	}
}

func TestFetchByValue_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := fixedNow.Add(10 * time.Minute)
	rows := sqlmock.NewRows([]string{"token", "token_id", "user_id", "expires_at", "used", "invalidated"}).
		AddRow("secret", "tid", "u1", exp, true, false)

	mock.ExpectQuery(fetchQuery).
		WithArgs("secret").
		WillReturnRows(rows)

	got, err := repo.FetchByValue(context.Background(), "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != "secret" || got.TokenID != "tid" || got.UserID != "u1" || !got.ExpiresAt.Equal(exp) || !got.Used || got.Invalidated {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestFetchByValue_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(fetchQuery).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FetchByValue(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFetchByValue_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(fetchQuery).
		WithArgs("secret").
		WillReturnError(errors.New("db err"))

	_, err := repo.FetchByValue(context.Background(), "secret")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestMarkUsed_Wins(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(markUsedQuery).
		WithArgs("secret").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkUsed(context.Background(), "secret", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMarkUsed_AlreadyRedeemed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(markUsedQuery).
		WithArgs("secret").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(usedQuery).
		WithArgs("secret").
		WillReturnRows(sqlmock.NewRows([]string{"used"}).AddRow(true))

	err := repo.MarkUsed(context.Background(), "secret", true)
	if !errors.Is(err, common.ErrAlreadyRedeemed) {
		t.Fatalf("want common.ErrAlreadyRedeemed, got %v", err)
	}
}

func TestMarkUsed_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(markUsedQuery).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(usedQuery).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	err := repo.MarkUsed(context.Background(), "missing", true)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestMarkUsed_Reset(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(markUnusedQuery).
		WithArgs("secret").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(markUnusedQuery).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkUsed(context.Background(), "secret", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.MarkUsed(context.Background(), "missing", false); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestMarkUsed_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(markUsedQuery).
		WithArgs("secret").
		WillReturnError(errors.New("db err"))

	err := repo.MarkUsed(context.Background(), "secret", true)
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDeleteAllExpired_UsesClock(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(sweepQuery).
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.DeleteAllExpired(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteAllExpired_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(sweepQuery).
		WithArgs(sqlmock.AnyArg()).
		WillReturnError(errors.New("db err"))

	err := repo.DeleteAllExpired(context.Background())
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
