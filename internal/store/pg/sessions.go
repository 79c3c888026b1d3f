package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"postboard.dev/internal/session"
)

// Sessions is the PostgreSQL session.Store. Only the SHA-256 of a session id
// is stored.
type Sessions struct {
	db  *sql.DB
	now func() time.Time
}

var _ session.Store = (*Sessions)(nil)

func NewSessions(db *sql.DB) *Sessions {
	return &Sessions{db: db, now: time.Now}
}

func (s *Sessions) Create(ctx context.Context, principalID int64, ttl time.Duration) (string, time.Time, error) {
	if s.db == nil {
		return "", time.Time{}, errNoDB
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("session ttl must be greater than zero")
	}
	id, err := session.NewID()
	if err != nil {
		return "", time.Time{}, err
	}
	expires := s.now().UTC().Add(ttl)
	if _, err := s.db.ExecContext(ctx, `
		insert into sessions(id_hash, user_id, expires_at)
		values ($1, $2, $3)
	`, session.HashID(id), principalID, expires); err != nil {
		return "", time.Time{}, err
	}
	return id, expires, nil
}

func (s *Sessions) Resolve(ctx context.Context, id string) (int64, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	var (
		principalID int64
		expires     time.Time
	)
	err := s.db.QueryRowContext(ctx, `select user_id, expires_at from sessions where id_hash = $1`, session.HashID(id)).
		Scan(&principalID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, session.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if !s.now().Before(expires) {
		return 0, session.ErrExpired
	}
	return principalID, nil
}

func (s *Sessions) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `delete from sessions where id_hash = $1`, session.HashID(id))
	return err
}

// Purge removes expired sessions and returns how many were deleted.
func (s *Sessions) Purge(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from sessions where expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
