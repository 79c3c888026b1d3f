// Package memory is an in-process implementation of every store contract.
// It backs the API when no database is configured, and the handler tests.
package memory

import (
	"context"
	"database/sql"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"postboard.dev/internal/account"
	"postboard.dev/internal/auth"
	"postboard.dev/internal/board"
	"postboard.dev/internal/profile"
)

type Store struct {
	mu sync.RWMutex

	principals map[int64]auth.Principal
	emails     map[string]int64
	profiles   map[int64]profile.Snapshot
	history    []profile.HistoryEntry
	posts      []board.Post
	comments   []board.Comment

	principalSeq int64
	historySeq   int64
	postSeq      int64
	commentSeq   int64

	now func() time.Time
}

var (
	_ account.Store = (*Store)(nil)
	_ profile.Store = (*Store)(nil)
	_ board.Store   = (*Store)(nil)
)

func New() *Store {
	return &Store{
		principals: make(map[int64]auth.Principal),
		emails:     make(map[string]int64),
		profiles:   make(map[int64]profile.Snapshot),
		now:        time.Now,
	}
}

func (s *Store) FindPrincipalByID(ctx context.Context, id int64) (auth.Principal, error) {
	if err := ctx.Err(); err != nil {
		return auth.Principal{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[id]
	if !ok {
		return auth.Principal{}, auth.ErrPrincipalNotFound
	}
	return p, nil
}

func (s *Store) FindPrincipalByEmail(ctx context.Context, email string) (auth.Principal, error) {
	if err := ctx.Err(); err != nil {
		return auth.Principal{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return auth.Principal{}, auth.ErrPrincipalNotFound
	}
	return s.principals[id], nil
}

func (s *Store) CreatePrincipalAndProfile(ctx context.Context, acct account.NewAccount) (auth.Principal, profile.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return auth.Principal{}, profile.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(acct.Email))
	if _, taken := s.emails[email]; taken {
		return auth.Principal{}, profile.Snapshot{}, account.ErrDuplicateIdentity
	}
	now := s.now().UTC()
	s.principalSeq++
	p := auth.Principal{
		ID:           s.principalSeq,
		Email:        email,
		PasswordHash: acct.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	prof := acct.Profile
	prof.PrincipalID = p.ID
	prof.CreatedAt = now
	prof.UpdatedAt = now

	s.principals[p.ID] = p
	s.emails[email] = p.ID
	s.profiles[p.ID] = prof
	return p, prof, nil
}

func (s *Store) FindProfile(ctx context.Context, principalID int64) (profile.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return profile.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[principalID]
	if !ok {
		return profile.Snapshot{}, profile.ErrProfileNotFound
	}
	return p, nil
}

func (s *Store) ListHistory(ctx context.Context, principalID int64, limit int) ([]profile.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []profile.HistoryEntry{}
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		if s.history[i].PrincipalID == principalID {
			out = append(out, s.history[i])
		}
	}
	return out, nil
}

// WithinTx serializes transactions on the store lock and applies staged
// writes only when fn succeeds. Every isolation level is honoured by the
// stronger serial execution.
func (s *Store) WithinTx(ctx context.Context, _ sql.IsolationLevel, fn func(ctx context.Context, tx profile.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &profileTx{
		now:        s.now,
		profiles:   maps.Clone(s.profiles),
		history:    slices.Clone(s.history),
		historySeq: s.historySeq,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.profiles = tx.profiles
	s.history = tx.history
	s.historySeq = tx.historySeq
	return nil
}

type profileTx struct {
	now        func() time.Time
	profiles   map[int64]profile.Snapshot
	history    []profile.HistoryEntry
	historySeq int64
}

func (t *profileTx) LockProfile(ctx context.Context, principalID int64) (profile.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return profile.Snapshot{}, err
	}
	p, ok := t.profiles[principalID]
	if !ok {
		return profile.Snapshot{}, profile.ErrProfileNotFound
	}
	return p, nil
}

func (t *profileTx) UpdateProfile(ctx context.Context, principalID int64, patch profile.Patch) (profile.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return profile.Snapshot{}, err
	}
	p, ok := t.profiles[principalID]
	if !ok {
		return profile.Snapshot{}, profile.ErrProfileNotFound
	}
	p = patch.ApplyTo(p)
	p.UpdatedAt = t.now().UTC()
	t.profiles[principalID] = p
	return p, nil
}

func (t *profileTx) AppendHistory(ctx context.Context, e profile.HistoryEntry) (profile.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return profile.HistoryEntry{}, err
	}
	t.historySeq++
	e.ID = t.historySeq
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.now().UTC()
	}
	t.history = append(t.history, e)
	return e, nil
}
