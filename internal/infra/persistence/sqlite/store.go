// Package sqlite stores the workshop document in a single-row SQLite table
// managed by goose migrations.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"probikes/pkg/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

const defaultPath = "probikes.db"

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Backend implements the snapshot backend contract on SQLite.
type Backend struct {
	db   *sql.DB
	name string
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at path, applies migrations
// and stores the document under name.
func Open(ctx context.Context, path, name string) (*Backend, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps the compare-and-swap and the file lock in step.
	db.SetMaxOpenConns(1)
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Backend{db: db, name: name, path: path, now: func() time.Time { return time.Now().UTC() }}, nil
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

// Load returns the stored payload and revision.
func (b *Backend) Load(ctx context.Context) ([]byte, int64, error) {
	var (
		rev     int64
		payload []byte
	)
	err := b.db.QueryRowContext(ctx, `SELECT revision, payload FROM documents WHERE name = ?`, b.name).Scan(&rev, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, domain.ErrNoDocument
	}
	if err != nil {
		return nil, 0, fmt.Errorf("select document: %w", err)
	}
	return payload, rev, nil
}

// Save updates the row only when its revision equals expected, inserting it
// when no row exists and expected is zero.
func (b *Backend) Save(ctx context.Context, payload []byte, expected, next int64) error {
	stamp := b.now().Format(time.RFC3339Nano)
	res, err := b.db.ExecContext(ctx,
		`UPDATE documents SET payload = ?, revision = ?, updated_at = ? WHERE name = ? AND revision = ?`,
		payload, next, stamp, b.name, expected)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if expected == 0 {
		res, err = b.db.ExecContext(ctx,
			`INSERT INTO documents (name, revision, payload, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT(name) DO NOTHING`,
			b.name, next, payload, stamp)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
	}
	return fmt.Errorf("%w: expected revision %d", domain.ErrStaleRevision, expected)
}

// Close closes the database.
func (b *Backend) Close() error { return b.db.Close() }

// DB exposes the underlying sql.DB for tests and tooling.
func (b *Backend) DB() *sql.DB { return b.db }

// Path returns the database path.
func (b *Backend) Path() string { return b.path }
