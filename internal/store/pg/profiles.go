package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"postboard.dev/internal/dbx"
	"postboard.dev/internal/profile"
)

const profileColumns = `user_id, name, age, gender, profile_image, created_at, updated_at`

func scanProfile(row rowScanner) (profile.Snapshot, error) {
	var p profile.Snapshot
	if err := row.Scan(&p.PrincipalID, &p.Name, &p.Age, &p.Gender, &p.ProfileImage, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profile.Snapshot{}, profile.ErrProfileNotFound
		}
		return profile.Snapshot{}, err
	}
	return p, nil
}

func (s *Store) FindProfile(ctx context.Context, principalID int64) (profile.Snapshot, error) {
	if s.db == nil {
		return profile.Snapshot{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+profileColumns+` from user_infos where user_id = $1`, principalID)
	return scanProfile(row)
}

func (s *Store) ListHistory(ctx context.Context, principalID int64, limit int) ([]profile.HistoryEntry, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select history_id, user_id, changed_field, old_value, new_value, created_at
		from user_histories
		where user_id = $1
		order by created_at desc, history_id desc
		limit $2
	`, principalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []profile.HistoryEntry{}
	for rows.Next() {
		var e profile.HistoryEntry
		if err := rows.Scan(&e.ID, &e.PrincipalID, &e.ChangedField, &e.OldValue, &e.NewValue, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// WithinTx runs fn in a transaction at the requested isolation level.
func (s *Store) WithinTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context, tx profile.Tx) error) error {
	if s.db == nil {
		return errNoDB
	}
	return dbx.WithTx(ctx, s.db, &sql.TxOptions{Isolation: isolation}, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, profileTx{q: tx})
	})
}

type profileTx struct {
	q dbx.DBTX
}

func (t profileTx) LockProfile(ctx context.Context, principalID int64) (profile.Snapshot, error) {
	row := t.q.QueryRowContext(ctx, `select `+profileColumns+` from user_infos where user_id = $1 for update`, principalID)
	return scanProfile(row)
}

// UpdateProfile writes only the columns present in patch.
func (t profileTx) UpdateProfile(ctx context.Context, principalID int64, patch profile.Patch) (profile.Snapshot, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if patch.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *patch.Name)
		idx++
	}
	if patch.Age != nil {
		sets = append(sets, fmt.Sprintf("age = $%d", idx))
		args = append(args, *patch.Age)
		idx++
	}
	if patch.Gender != nil {
		sets = append(sets, fmt.Sprintf("gender = $%d", idx))
		args = append(args, *patch.Gender)
		idx++
	}
	if patch.ProfileImage != nil {
		sets = append(sets, fmt.Sprintf("profile_image = $%d", idx))
		args = append(args, *patch.ProfileImage)
		idx++
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update user_infos set %s where user_id = $%d returning %s`, strings.Join(sets, ", "), idx, profileColumns)
	args = append(args, principalID)

	return scanProfile(t.q.QueryRowContext(ctx, query, args...))
}

func (t profileTx) AppendHistory(ctx context.Context, e profile.HistoryEntry) (profile.HistoryEntry, error) {
	err := t.q.QueryRowContext(ctx, `
		insert into user_histories(user_id, changed_field, old_value, new_value, created_at)
		values ($1, $2, $3, $4, $5)
		returning history_id, created_at
	`, e.PrincipalID, e.ChangedField, e.OldValue, e.NewValue, e.CreatedAt).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return profile.HistoryEntry{}, err
	}
	return e, nil
}
