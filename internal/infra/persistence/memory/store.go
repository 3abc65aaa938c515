// Package memory implements the in-memory document store. Every transaction
// works on a clone of the current document and is swapped in only after the
// rules engine and the optional commit hook accept it.
package memory

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"probikes/pkg/domain"
)

type (
	Document        = domain.Document
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	Result          = domain.Result
	Change          = domain.Change
	RulesEngine     = domain.RulesEngine
	MigrationReport = domain.MigrationReport
)

// CommitFunc receives the next document (revision already advanced) before it
// replaces the current one. Returning an error aborts the transaction.
type CommitFunc func(ctx context.Context, next Document) error

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// WithRandom overrides the fraction source used for reminder ids.
func WithRandom(fn func() float64) Option {
	return func(s *Store) {
		if fn != nil {
			s.randFn = fn
		}
	}
}

// Store holds the single in-memory document.
type Store struct {
	mu     sync.RWMutex
	state  Document
	engine *RulesEngine
	nowFn  func() time.Time
	randFn func() float64
	commit CommitFunc
}

// NewStore constructs an empty store at the current schema version.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  Document{SchemaVersion: domain.SchemaVersion, Epoch: NewEpoch()}.Normalize(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		randFn: rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCommitHook installs fn to run before each successful transaction swaps
// in its document.
func (s *Store) SetCommitHook(fn CommitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit = fn
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	return s.engine
}

// NowFunc returns the store's clock.
func (s *Store) NowFunc() func() time.Time {
	return s.nowFn
}

// ExportState returns a deep copy of the current document.
func (s *Store) ExportState() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// ImportState migrates doc and replaces the current document with it without
// running the commit hook. It is used when hydrating from a backend.
func (s *Store) ImportState(doc Document) MigrationReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	migrated, report := Migrate(doc)
	s.state = migrated
	return report
}

// Revision returns the revision of the current document.
func (s *Store) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Revision
}

// RunInTransaction applies fn to a clone of the document. Nothing is committed
// when fn fails, a rule blocks, or the commit hook rejects the result. A
// transaction that records no changes leaves the revision untouched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.Clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, newTransactionView(&tx.state), tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if len(tx.changes) == 0 {
		return result, nil
	}
	next := tx.state.Normalize()
	next.Revision = s.state.Revision + 1
	if s.commit != nil {
		if err := s.commit(ctx, next); err != nil {
			return result, err
		}
	}
	s.state = next
	return result, nil
}

// Flush runs the commit hook for the current document at the next revision,
// as if a transaction had changed it. It is used to persist migration and
// seed results that did not come from a transaction.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.Clone()
	next.Revision = s.state.Revision + 1
	if s.commit != nil {
		if err := s.commit(ctx, next); err != nil {
			return err
		}
	}
	s.state = next
	return nil
}

// View runs fn against a read-only clone of the current document.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.Clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

// SetRevision records the revision a backend acknowledged for the current
// document.
func (s *Store) SetRevision(rev int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Revision = rev
}
