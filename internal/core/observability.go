package core

import (
	"context"
	"time"
)

// Logger is the minimal structured logger the service writes to. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts a span around a service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// AuditStatus is the outcome recorded in an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one mutating operation.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder persists or forwards audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type operationMeta struct {
	entity EntityType
	action Action
}

// auditedOperations lists the mutating operations and what they touch.
// Operations missing here are traced and measured but not audited.
var auditedOperations = map[string]operationMeta{
	"upsert_page":     {EntityPage, ActionUpdate},
	"save_page":       {EntityPage, ActionUpdate},
	"toggle_favorite": {EntityPage, ActionUpdate},
	"delete_page":     {EntityPage, ActionDelete},
	"add_passage":     {EntityPage, ActionUpdate},
	"edit_passage":    {EntityPage, ActionUpdate},
	"delete_passage":  {EntityPage, ActionUpdate},
	"seed":            {EntityPage, ActionCreate},
	"start_run":       {EntityRun, ActionCreate},
	"update_run":      {EntityRun, ActionUpdate},
	"delete_run":      {EntityRun, ActionDelete},
	"add_block":       {EntityRun, ActionUpdate},
	"delete_block":    {EntityRun, ActionUpdate},
	"toggle_finished": {EntityRun, ActionUpdate},
	"set_run_start":   {EntityRun, ActionUpdate},
	"set_run_notes":   {EntityRun, ActionUpdate},
	"set_run_cell":    {EntityRun, ActionUpdate},
	"import":          {EntityPage, ActionReplace},
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, AuditStatusSuccess, nil, duration)
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, err error, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, AuditStatusError, err, duration)
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, status AuditStatus, err error, duration time.Duration) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    status,
		Duration:  duration,
		Timestamp: s.now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// observe wraps fn with a span, a metric, an audit entry and a log line.
// fn returns the id of the record it touched.
func (s *Service) observe(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	id, err := fn(ctx)
	elapsed := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	if err != nil {
		s.recordAuditError(ctx, op, id, err, elapsed)
		s.logger.Warn("operation failed", "operation", op, "id", id, "err", err)
		return err
	}
	s.recordAuditSuccess(ctx, op, id, elapsed)
	s.logger.Debug("operation completed", "operation", op, "id", id, "duration", elapsed)
	return nil
}
