// Package migrate applies the embedded schema migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var migrations embed.FS

const dir = "sql"

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// Seams for tests.
var (
	gooseUp      = goose.UpContext
	gooseDown    = goose.DownContext
	gooseVersion = goose.GetDBVersionContext
	gooseCollect = goose.CollectMigrations
)

type Manager struct {
	db    *sql.DB
	table string
}

type Option func(*Manager)

// WithTable overrides the goose version table name.
func WithTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.table = name
		}
	}
}

func NewManager(db *sql.DB, opts ...Option) *Manager {
	m := &Manager{db: db, table: "goose_db_version"}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies every pending migration.
func (m *Manager) Up(ctx context.Context) error {
	return m.run(func() error { return gooseUp(ctx, m.db, dir) })
}

// Down rolls back the most recent migration.
func (m *Manager) Down(ctx context.Context) error {
	return m.run(func() error { return gooseDown(ctx, m.db, dir) })
}

// Version reports the current schema version.
func (m *Manager) Version(ctx context.Context) (int64, error) {
	var v int64
	err := m.run(func() error {
		var err error
		v, err = gooseVersion(ctx, m.db)
		return err
	})
	return v, err
}

// Status lists every known migration and whether it is applied.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	var out []string
	err := m.run(func() error {
		current, err := gooseVersion(ctx, m.db)
		if err != nil {
			return err
		}
		all, err := gooseCollect(dir, 0, goose.MaxVersion)
		if err != nil {
			return err
		}
		for _, mig := range all {
			state := "pending"
			if mig.Version <= current {
				state = "applied"
			}
			out = append(out, fmt.Sprintf("%05d %-8s %s", mig.Version, state, mig.Source))
		}
		return nil
	})
	return out, err
}

func (m *Manager) run(fn func() error) error {
	if m.db == nil {
		return errors.New("migrate: db is nil")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetTableName(m.table)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return fn()
}
