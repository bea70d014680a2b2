package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// ExpvarMetricsRecorder publishes per-operation totals under one expvar map:
// "<op>.duration_ms" accumulates time spent and "<op>.success" /
// "<op>.error" count outcomes.
type ExpvarMetricsRecorder struct {
	name string
	vars *expvar.Map
}

// ExpvarMetricsSnapshot is a point-in-time copy of the published totals.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
}

// NewExpvarMetricsRecorder publishes a recorder under name. An empty name gets
// a unique generated one, since expvar names cannot be reused.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("labbook_service_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	return &ExpvarMetricsRecorder{name: name, vars: expvar.NewMap(name)}
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe records a service operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.vars.AddFloat(operation+".duration_ms", float64(duration)/float64(time.Millisecond))
	status := "error"
	if success {
		status = "success"
	}
	r.vars.Add(operation+"."+status, 1)
}

// Snapshot regroups the published totals by operation.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	snap := ExpvarMetricsSnapshot{
		DurationsMS: make(map[string]float64),
		Results:     make(map[string]map[string]int64),
	}
	r.vars.Do(func(kv expvar.KeyValue) {
		op, field := splitMetricKey(kv.Key)
		switch v := kv.Value.(type) {
		case *expvar.Float:
			snap.DurationsMS[op] = v.Value()
		case *expvar.Int:
			if snap.Results[op] == nil {
				snap.Results[op] = make(map[string]int64, 2)
			}
			snap.Results[op][field] = v.Value()
		}
	})
	return snap
}

func splitMetricKey(key string) (string, string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '.' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// JSONTraceEntry is one finished span as written by JSONTraceTracer.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes finished spans as JSON lines and keeps them for
// inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer returns a tracer writing to w. A nil w only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of all recorded spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, started: time.Now().UTC()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}

	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
}
