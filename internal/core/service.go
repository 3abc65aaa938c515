// Package core is the workshop service layer: repository operations, read
// models, finalize, and backups on top of a domain.PersistentStore.
package core

import (
	"context"
	"errors"
	"time"

	"probikes/internal/blob"
	"probikes/internal/infra/persistence/memory"
	"probikes/internal/logging"
	"probikes/pkg/domain"
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
	Result          = domain.Result
)

// Clock supplies the current time to views and backups.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder observes the outcome of every service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended once with the operation error.
type TraceSpan interface {
	End(err error)
}

// ViewCache stores encoded read models. Keys embed the document revision, so
// entries never need invalidation.
type ViewCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(l) }
}

// WithClock overrides the clock used for views and backup names.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithPublisher sets the destination of ServiceFinalized events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithViewCache enables caching of aggregate views.
func WithViewCache(c ViewCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithBackupStore sets the blob store that holds exported backups.
func WithBackupStore(b blob.Store) Option {
	return func(s *Service) { s.backups = b }
}

// Service exposes transactional workshop operations.
type Service struct {
	store     PersistentStore
	logger    logging.Logger
	clock     Clock
	metrics   MetricsRecorder
	tracer    Tracer
	publisher Publisher
	cache     ViewCache
	backups   blob.Store
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logging.Nop(),
		clock:  ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// run executes fn in a store transaction with tracing, metrics and logging.
func (s *Service) run(ctx context.Context, op string, fn func(tx Transaction) error) (Result, error) {
	ctx, end := s.observe(ctx, op)
	res, err := s.store.RunInTransaction(ctx, fn)
	end(err)
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			s.logger.Warn("rule warning", "operation", op, "rule", v.Rule, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
		}
	}
	return res, err
}

// read executes fn against a consistent snapshot.
func (s *Service) read(ctx context.Context, op string, fn func(view TransactionView) error) error {
	ctx, end := s.observe(ctx, op)
	err := s.store.View(ctx, fn)
	end(err)
	return err
}

func (s *Service) observe(ctx context.Context, op string) (context.Context, func(error)) {
	started := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, op)
	}
	return ctx, func(err error) {
		elapsed := time.Since(started)
		if span != nil {
			span.End(err)
		}
		if s.metrics != nil {
			s.metrics.Observe(ctx, op, err == nil, elapsed)
		}
		switch {
		case err == nil:
			s.logger.Debug("operation completed", "operation", op, "duration", elapsed)
		case domain.IsNotFound(err), errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidBackup):
			s.logger.Info("operation rejected", "operation", op, "error", err)
		default:
			s.logger.Error("operation failed", "operation", op, "error", err, "duration", elapsed)
		}
	}
}

// Revision returns the revision of the current document.
func (s *Service) Revision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.store.View(ctx, func(view TransactionView) error {
		rev = view.Revision()
		return nil
	})
	return rev, err
}

// SystemInfo summarises the loaded document.
type SystemInfo struct {
	SchemaVersion int                     `json:"schema_version"`
	Revision      int64                   `json:"revision"`
	Clients       int                     `json:"clients"`
	Bikes         int                     `json:"bikes"`
	Services      int                     `json:"services"`
	Reminders     int                     `json:"reminders"`
	Migration     *domain.MigrationReport `json:"migration,omitempty"`
}

type migrationReporter interface {
	MigrationReport() domain.MigrationReport
}

// SystemInfo reports document counters and, for persistent stores, the last
// migration report.
func (s *Service) SystemInfo(ctx context.Context) (SystemInfo, error) {
	var info SystemInfo
	err := s.read(ctx, "system_info", func(view TransactionView) error {
		info = SystemInfo{
			SchemaVersion: view.SchemaVersion(),
			Revision:      view.Revision(),
			Clients:       len(view.ListClients()),
			Bikes:         len(view.ListBikes()),
			Services:      len(view.ListServices()),
			Reminders:     len(view.ListReminders()),
		}
		return nil
	})
	if r, ok := s.store.(migrationReporter); ok {
		report := r.MigrationReport()
		info.Migration = &report
	}
	return info, err
}
