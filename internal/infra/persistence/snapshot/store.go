package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"probikes/internal/infra/persistence/memory"
	"probikes/internal/logging"
	"probikes/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// Option customises Open.
type Option func(*options)

type options struct {
	logger  logging.Logger
	memOpts []memory.Option
	now     func() time.Time
}

// WithLogger sets the logger used for load faults and migrations.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMemoryOptions forwards options to the in-memory store.
func WithMemoryOptions(opts ...memory.Option) Option {
	return func(o *options) { o.memOpts = append(o.memOpts, opts...) }
}

// WithClock sets the clock used for the seed document.
func WithClock(fn func() time.Time) Option {
	return func(o *options) {
		if fn != nil {
			o.now = fn
		}
	}
}

// Store is a memory.Store whose commits are written through to a Backend
// before they become visible.
type Store struct {
	*memory.Store
	backend Backend
	log     logging.Logger
	now     func() time.Time

	mu     sync.RWMutex
	report domain.MigrationReport
	seeded bool
}

// Open loads the document from backend, migrates it and installs the
// write-through hook. An absent or corrupt document is replaced by the seed
// dataset, which is persisted immediately. Backend I/O failures are returned.
func Open(ctx context.Context, backend Backend, engine *domain.RulesEngine, opts ...Option) (*Store, error) {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store{
		Store:   memory.NewStore(engine, o.memOpts...),
		backend: backend,
		log:     logging.OrNop(o.logger).With("component", "snapshot"),
		now:     o.now,
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	s.SetCommitHook(s.commit)
	if s.needsFlush() {
		if err := s.Store.Flush(ctx); err != nil {
			return nil, fmt.Errorf("persist loaded document: %w", err)
		}
		s.log.Info("document persisted after open", "revision", s.Revision(), "seeded", s.seeded)
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	payload, rev, err := s.backend.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrNoDocument):
		s.log.Info("no persisted document, installing seed data")
		s.installSeed(0)
		return nil
	case err != nil:
		return fmt.Errorf("load document: %w", err)
	}
	doc, err := Decode(payload)
	if err != nil {
		s.log.Error("persisted document is unreadable, installing seed data", "error", err, "revision", rev)
		s.installSeed(rev)
		return nil
	}
	report := s.ImportState(doc)
	s.SetRevision(rev)
	s.setReport(report, false)
	if report.Changed() {
		s.log.Info("document migrated",
			"from_version", report.FromVersion,
			"to_version", report.ToVersion,
			"applied", report.Applied,
			"reminders_removed", report.RemindersRemoved,
			"display_ids_changed", report.DisplayIDsChanged,
			"reload_required", report.ReloadRequired)
	}
	return nil
}

func (s *Store) installSeed(storedRevision int64) {
	report := s.ImportState(SeedDocument(s.now()))
	s.SetRevision(storedRevision)
	s.setReport(report, true)
}

func (s *Store) needsFlush() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seeded || s.report.Changed()
}

func (s *Store) setReport(report domain.MigrationReport, seeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = report
	s.seeded = seeded
}

func (s *Store) commit(ctx context.Context, next domain.Document) error {
	payload, err := Encode(next)
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, payload, next.Revision-1, next.Revision); err != nil {
		if errors.Is(err, domain.ErrStaleRevision) {
			s.log.Warn("save rejected, document changed elsewhere", "revision", next.Revision-1)
		}
		return err
	}
	return nil
}

// Persist writes the current document at the next revision.
func (s *Store) Persist(ctx context.Context) error {
	return s.Store.Flush(ctx)
}

// Reload replaces the in-memory document with the backend's current copy,
// migrating and persisting it when needed. Callers use it after a stale
// revision error.
func (s *Store) Reload(ctx context.Context) (domain.MigrationReport, error) {
	payload, rev, err := s.backend.Load(ctx)
	if err != nil {
		return domain.MigrationReport{}, fmt.Errorf("reload document: %w", err)
	}
	doc, err := Decode(payload)
	if err != nil {
		return domain.MigrationReport{}, err
	}
	report := s.ImportState(doc)
	s.SetRevision(rev)
	s.setReport(report, false)
	if report.Changed() {
		if err := s.Store.Flush(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

// MigrationReport returns the report of the last open or reload.
func (s *Store) MigrationReport() domain.MigrationReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// Seeded reports whether the seed dataset was installed on open.
func (s *Store) Seeded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seeded
}

// Backend returns the persistence backend.
func (s *Store) Backend() Backend { return s.backend }

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }
