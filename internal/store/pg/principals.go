package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"postboard.dev/internal/account"
	"postboard.dev/internal/auth"
	"postboard.dev/internal/dbx"
	"postboard.dev/internal/profile"
)

const principalColumns = `user_id, email, password_hash, created_at, updated_at`

func scanPrincipal(row rowScanner) (auth.Principal, error) {
	var p auth.Principal
	if err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Principal{}, auth.ErrPrincipalNotFound
		}
		return auth.Principal{}, err
	}
	return p, nil
}

func (s *Store) FindPrincipalByID(ctx context.Context, id int64) (auth.Principal, error) {
	if s.db == nil {
		return auth.Principal{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+principalColumns+` from users where user_id = $1`, id)
	return scanPrincipal(row)
}

func (s *Store) FindPrincipalByEmail(ctx context.Context, email string) (auth.Principal, error) {
	if s.db == nil {
		return auth.Principal{}, errNoDB
	}
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRowContext(ctx, `select `+principalColumns+` from users where lower(email) = $1`, email)
	return scanPrincipal(row)
}

// CreatePrincipalAndProfile inserts the user and its profile in one
// read-committed transaction.
func (s *Store) CreatePrincipalAndProfile(ctx context.Context, acct account.NewAccount) (auth.Principal, profile.Snapshot, error) {
	if s.db == nil {
		return auth.Principal{}, profile.Snapshot{}, errNoDB
	}
	var (
		p    auth.Principal
		prof profile.Snapshot
	)
	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted, func(ctx context.Context, tx dbx.DBTX) error {
		p = auth.Principal{Email: strings.ToLower(strings.TrimSpace(acct.Email)), PasswordHash: acct.PasswordHash}
		err := tx.QueryRowContext(ctx, `
			insert into users(email, password_hash)
			values ($1, $2)
			returning user_id, created_at, updated_at
		`, p.Email, p.PasswordHash).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		prof = acct.Profile
		prof.PrincipalID = p.ID
		err = tx.QueryRowContext(ctx, `
			insert into user_infos(user_id, name, age, gender, profile_image)
			values ($1, $2, $3, $4, $5)
			returning created_at, updated_at
		`, prof.PrincipalID, prof.Name, prof.Age, prof.Gender, prof.ProfileImage).Scan(&prof.CreatedAt, &prof.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert user info: %w", err)
		}
		return nil
	})
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Principal{}, profile.Snapshot{}, account.ErrDuplicateIdentity
		}
		return auth.Principal{}, profile.Snapshot{}, err
	}
	return p, prof, nil
}
