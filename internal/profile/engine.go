package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("postboard.dev/internal/profile")

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Tx is the transactional view of the store used by a single Update.
type Tx interface {
	// LockProfile reads the row and holds it until the transaction ends.
	LockProfile(ctx context.Context, principalID int64) (Snapshot, error)
	UpdateProfile(ctx context.Context, principalID int64, patch Patch) (Snapshot, error)
	AppendHistory(ctx context.Context, entry HistoryEntry) (HistoryEntry, error)
}

// Store persists profiles and history. WithinTx commits when fn returns nil
// and rolls back otherwise.
type Store interface {
	FindProfile(ctx context.Context, principalID int64) (Snapshot, error)
	ListHistory(ctx context.Context, principalID int64, limit int) ([]HistoryEntry, error)
	WithinTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context, tx Tx) error) error
}

// Outcome labels how an Update ended.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeNoop       Outcome = "noop"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeInvalid    Outcome = "invalid"
	OutcomeRolledBack Outcome = "rolled_back"
)

// Result is what an Update committed.
type Result struct {
	Profile Snapshot       `json:"profile"`
	Changes []HistoryEntry `json:"changes"`
	Outcome Outcome        `json:"-"`
}

// Engine applies patches and records their history atomically.
type Engine struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
}

type EngineOption func(*Engine)

// WithTimeout bounds each Update on top of the caller's deadline.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// WithClock overrides the timestamp source for history rows.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Profile loads the principal's current profile.
func (e *Engine) Profile(ctx context.Context, principalID int64) (Snapshot, error) {
	s, err := e.store.FindProfile(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return Snapshot{}, ErrProfileNotFound
		}
		return Snapshot{}, fmt.Errorf("find profile: %w", err)
	}
	return s, nil
}

// Update writes patch onto the principal's profile and appends one history
// entry per field whose string value actually changes. current is the profile
// the caller loaded; nil means there is none and nothing is written.
//
// The row is re-read under lock inside a read-committed transaction and the
// diff is taken against that read, so concurrent updates of one profile each
// audit the value they replaced.
func (e *Engine) Update(ctx context.Context, principalID int64, current *Snapshot, patch Patch) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "profile.Update", trace.WithAttributes(
		attribute.Int64("profile.principal_id", principalID),
		attribute.Int("profile.patch_fields", len(patch.Fields())),
	))
	defer func() {
		span.SetAttributes(
			attribute.String("profile.outcome", string(res.Outcome)),
			attribute.Int("profile.changes", len(res.Changes)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(res.Outcome))
		}
		span.End()
	}()

	if current == nil {
		return Result{Outcome: OutcomeNotFound}, ErrProfileNotFound
	}
	if err := patch.Validate(); err != nil {
		return Result{Outcome: OutcomeInvalid}, err
	}
	if patch.IsEmpty() {
		return Result{Profile: *current, Changes: []HistoryEntry{}, Outcome: OutcomeNoop}, nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var committed Result
	err = e.store.WithinTx(ctx, sql.LevelReadCommitted, func(ctx context.Context, tx Tx) error {
		before, err := tx.LockProfile(ctx, principalID)
		if err != nil {
			return err
		}
		changes := Diff(before, patch)

		after, err := tx.UpdateProfile(ctx, principalID, patch)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}

		at := e.now().UTC()
		entries := make([]HistoryEntry, 0, len(changes))
		for _, c := range changes {
			entry, err := tx.AppendHistory(ctx, HistoryEntry{
				PrincipalID:  principalID,
				ChangedField: c.Field,
				OldValue:     c.Old,
				NewValue:     c.New,
				CreatedAt:    at,
			})
			if err != nil {
				return fmt.Errorf("append history %s: %w", c.Field, err)
			}
			entries = append(entries, entry)
		}
		committed = Result{Profile: after, Changes: entries, Outcome: OutcomeApplied}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return Result{Outcome: OutcomeNotFound}, ErrProfileNotFound
		}
		return Result{Outcome: OutcomeRolledBack}, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	if len(committed.Changes) == 0 {
		committed.Outcome = OutcomeNoop
	}
	return committed, nil
}

// History lists the principal's changes, newest first.
func (e *Engine) History(ctx context.Context, principalID int64, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	entries, err := e.store.ListHistory(ctx, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}
