package core

import (
	"context"
	"time"
)

// Service exposes the lab book operations on top of a PersistentStore. Every
// mutation runs in one store transaction, so it either commits and flushes
// the whole state or changes nothing.
type Service struct {
	store   PersistentStore
	clock   Clock
	ids     IDGenerator
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder

	onReload func()
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for updatedAt, startedAt and
// the other timestamps the service stamps.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides the record id source.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Service) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder records one observation per operation.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer wraps every operation in a span.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder records an entry for every mutating operation.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

// WithReloadHook registers fn to run after an import has replaced the state.
// Callers holding pages or runs read before the import must refetch them.
func WithReloadHook(fn func()) Option {
	return func(s *Service) { s.onReload = fn }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		ids:     UUIDv7Generator(),
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.clock == nil {
		svc.clock = newMonotonicClock(store.NowFunc())
	}
	return svc
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Close releases the backing store.
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) now() time.Time {
	return truncateMillis(s.clock.Now())
}

// mutate runs fn in a store transaction under observe and logs non-blocking
// rule violations.
func (s *Service) mutate(ctx context.Context, op string, fn func(tx Transaction) (string, error)) error {
	return s.observe(ctx, op, func(ctx context.Context) (string, error) {
		var id string
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			id, err = fn(tx)
			return err
		})
		for _, v := range res.Violations {
			if v.Severity == SeverityBlock {
				continue
			}
			s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", v.Severity, "id", v.EntityID, "message", v.Message)
		}
		return id, err
	})
}

// view runs fn against a read-only snapshot.
func (s *Service) view(ctx context.Context, fn func(v TransactionView)) {
	_ = s.store.View(ctx, func(v TransactionView) error {
		fn(v)
		return nil
	})
}
