package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryRecord struct {
	principalID int64
	expiresAt   time.Time
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.Mutex
	rows map[string]memoryRecord
	now  func() time.Time
}

var _ Store = (*Memory)(nil)

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMemoryClock overrides the store's time source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		rows: make(map[string]memoryRecord),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Create(ctx context.Context, principalID int64, ttl time.Duration) (string, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return "", time.Time{}, err
	}
	if principalID <= 0 {
		return "", time.Time{}, errors.New("principal id is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("session ttl must be greater than zero")
	}
	id, err := NewID()
	if err != nil {
		return "", time.Time{}, err
	}
	expires := m.now().UTC().Add(ttl)

	m.mu.Lock()
	m.rows[HashID(id)] = memoryRecord{principalID: principalID, expiresAt: expires}
	m.mu.Unlock()
	return id, expires, nil
}

func (m *Memory) Resolve(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[HashID(id)]
	if !ok {
		return 0, ErrNotFound
	}
	if !m.now().Before(rec.expiresAt) {
		return 0, ErrExpired
	}
	return rec.principalID, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.rows, HashID(id))
	m.mu.Unlock()
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, rec := range m.rows {
		if !now.Before(rec.expiresAt) {
			delete(m.rows, key)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
