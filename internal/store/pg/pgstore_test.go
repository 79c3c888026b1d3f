package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"postboard.dev/internal/account"
	"postboard.dev/internal/auth"
	"postboard.dev/internal/board"
	"postboard.dev/internal/profile"
	"postboard.dev/internal/session"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

var profileCols = []string{"user_id", "name", "age", "gender", "profile_image", "created_at", "updated_at"}

func TestFindPrincipalByID(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`select user_id, email, password_hash, created_at, updated_at from users where user_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email", "password_hash", "created_at", "updated_at"}).
			AddRow(int64(1), "alice@example.com", "hash", now, now))
	mock.ExpectQuery(`from users where user_id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email", "password_hash", "created_at", "updated_at"}))

	p, err := s.FindPrincipalByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.Email != "alice@example.com" || p.PasswordHash != "hash" {
		t.Fatalf("unexpected principal %+v", p)
	}
	if _, err := s.FindPrincipalByID(context.Background(), 2); !errors.Is(err, auth.ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreatePrincipalAndProfileCommits(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`insert into users\(email, password_hash\)`).
		WithArgs("alice@example.com", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "created_at", "updated_at"}).AddRow(int64(7), now, now))
	mock.ExpectQuery(`insert into user_infos\(user_id, name, age, gender, profile_image\)`).
		WithArgs(int64(7), "Alice", 30, "F", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	p, prof, err := s.CreatePrincipalAndProfile(context.Background(), account.NewAccount{
		Email:        "Alice@example.com",
		PasswordHash: "hash",
		Profile:      profile.Snapshot{Name: "Alice", Age: 30, Gender: "F"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID != 7 || prof.PrincipalID != 7 {
		t.Fatalf("unexpected ids %d/%d", p.ID, prof.PrincipalID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreatePrincipalAndProfileDuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`insert into users`).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	_, _, err := s.CreatePrincipalAndProfile(context.Background(), account.NewAccount{Email: "a@example.com", PasswordHash: "h"})
	if !errors.Is(err, account.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreatePrincipalAndProfileRollsBackOnProfileFailure(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`insert into users`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "created_at", "updated_at"}).AddRow(int64(7), now, now))
	mock.ExpectQuery(`insert into user_infos`).
		WillReturnError(errors.New("check constraint"))
	mock.ExpectRollback()

	_, _, err := s.CreatePrincipalAndProfile(context.Background(), account.NewAccount{Email: "a@example.com", PasswordHash: "h"})
	if err == nil || errors.Is(err, account.ErrDuplicateIdentity) {
		t.Fatalf("expected plain failure, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEngineUpdateRecordsHistoryInTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`select .* from user_infos where user_id = \$1 for update`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(int64(1), "Alice", 30, "F", "a.png", created, created))
	mock.ExpectQuery(regexp.QuoteMeta(`update user_infos set name = $1, age = $2, updated_at = now() where user_id = $3 returning`)).
		WithArgs("Bob", 30, int64(1)).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(int64(1), "Bob", 30, "F", "a.png", created, at))
	mock.ExpectQuery(`insert into user_histories`).
		WithArgs(int64(1), "name", "Alice", "Bob", at).
		WillReturnRows(sqlmock.NewRows([]string{"history_id", "created_at"}).AddRow(int64(11), at))
	mock.ExpectCommit()

	engine := profile.NewEngine(s, profile.WithClock(func() time.Time { return at }))
	current := profile.Snapshot{PrincipalID: 1, Name: "Alice", Age: 30, Gender: "F", ProfileImage: "a.png"}
	name, age := "Bob", 30

	res, err := engine.Update(context.Background(), 1, &current, profile.Patch{Name: &name, Age: &age})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(res.Changes) != 1 || res.Changes[0].ID != 11 || res.Changes[0].ChangedField != "name" {
		t.Fatalf("unexpected changes %+v", res.Changes)
	}
	if res.Profile.Name != "Bob" {
		t.Fatalf("unexpected profile %+v", res.Profile)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEngineUpdateRollsBackWhenHistoryInsertFails(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`for update`).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(int64(1), "Alice", 30, "F", "", now, now))
	mock.ExpectQuery(`update user_infos set gender = \$1`).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(int64(1), "Alice", 30, "M", "", now, now))
	mock.ExpectQuery(`insert into user_histories`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	engine := profile.NewEngine(s)
	current := profile.Snapshot{PrincipalID: 1, Name: "Alice", Age: 30, Gender: "F"}
	gender := "M"

	_, err := engine.Update(context.Background(), 1, &current, profile.Patch{Gender: &gender})
	if !errors.Is(err, profile.ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEngineUpdateMissingRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`for update`).WillReturnRows(sqlmock.NewRows(profileCols))
	mock.ExpectRollback()

	current := profile.Snapshot{PrincipalID: 1}
	name := "Bob"
	_, err := profile.NewEngine(s).Update(context.Background(), 1, &current, profile.Patch{Name: &name})
	if !errors.Is(err, profile.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListHistory(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`from user_histories where user_id = \$1 order by created_at desc, history_id desc limit \$2`).
		WithArgs(int64(1), 20).
		WillReturnRows(sqlmock.NewRows([]string{"history_id", "user_id", "changed_field", "old_value", "new_value", "created_at"}).
			AddRow(int64(2), int64(1), "age", "30", "31", now).
			AddRow(int64(1), int64(1), "name", "Alice", "Bob", now))

	entries, err := s.ListHistory(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != 2 {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSessionsResolve(t *testing.T) {
	s, mock := newMockStore(t)
	sessions := NewSessions(s.DB())
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return now }

	id, err := session.NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	cols := []string{"user_id", "expires_at"}

	mock.ExpectQuery(`select user_id, expires_at from sessions where id_hash = \$1`).
		WithArgs(session.HashID(id)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(3), now.Add(time.Hour)))
	mock.ExpectQuery(`from sessions`).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(3), now.Add(-time.Second)))
	mock.ExpectQuery(`from sessions`).
		WillReturnRows(sqlmock.NewRows(cols))

	got, err := sessions.Resolve(context.Background(), id)
	if err != nil || got != 3 {
		t.Fatalf("expected principal 3, got %d (%v)", got, err)
	}
	if _, err := sessions.Resolve(context.Background(), id); !errors.Is(err, session.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := sessions.Resolve(context.Background(), id); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSessionsCreateStoresHash(t *testing.T) {
	s, mock := newMockStore(t)
	sessions := NewSessions(s.DB())

	mock.ExpectExec(`insert into sessions\(id_hash, user_id, expires_at\)`).
		WithArgs(sqlmock.AnyArg(), int64(3), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, expires, err := sessions.Create(context.Background(), 3, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !session.ValidID(id) || !expires.After(time.Now()) {
		t.Fatalf("unexpected session %q %v", id, expires)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateCommentUnknownPost(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`insert into comments`).
		WithArgs(int64(42), int64(1), "hi").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	_, err := s.CreateComment(context.Background(), board.Comment{PostID: 42, PrincipalID: 1, Content: "hi"})
	if !errors.Is(err, board.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetPostNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`from posts where post_id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "user_id", "title", "content", "created_at", "updated_at"}))

	if _, err := s.GetPost(context.Background(), 5); !errors.Is(err, board.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
