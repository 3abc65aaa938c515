// Package postgres stores the workshop document as a JSONB row in Postgres.
// The schema is managed by embedded goose migrations.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/pressly/goose/v3"

	"probikes/pkg/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/probikes?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Backend implements the snapshot backend contract on Postgres.
type Backend struct {
	db   *sql.DB
	name string
	now  func() time.Time
}

// Open connects to dsn (falls back to defaultDSN), applies migrations and
// stores the document under name.
func Open(ctx context.Context, dsn, name string) (*Backend, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Backend{db: db, name: name, now: func() time.Time { return time.Now().UTC() }}, nil
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// Load returns the stored payload and revision.
func (b *Backend) Load(ctx context.Context) ([]byte, int64, error) {
	var (
		rev     int64
		payload []byte
	)
	err := b.db.QueryRowContext(ctx, `SELECT revision, payload FROM documents WHERE name = $1`, b.name).Scan(&rev, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, domain.ErrNoDocument
	}
	if err != nil {
		return nil, 0, fmt.Errorf("select document: %w", err)
	}
	return payload, rev, nil
}

// Save performs a compare-and-swap on the revision column.
func (b *Backend) Save(ctx context.Context, payload []byte, expected, next int64) error {
	now := b.now()
	res, err := b.db.ExecContext(ctx,
		`UPDATE documents SET payload = $1, revision = $2, updated_at = $3 WHERE name = $4 AND revision = $5`,
		payload, next, now, b.name, expected)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if expected == 0 {
		res, err = b.db.ExecContext(ctx,
			`INSERT INTO documents (name, revision, payload, updated_at) VALUES ($1, $2, $3, $4) ON CONFLICT (name) DO NOTHING`,
			b.name, next, payload, now)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
	}
	return fmt.Errorf("%w: expected revision %d", domain.ErrStaleRevision, expected)
}

// Close closes the connection pool.
func (b *Backend) Close() error { return b.db.Close() }

// DB exposes the underlying sql.DB.
func (b *Backend) DB() *sql.DB { return b.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
