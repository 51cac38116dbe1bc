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

// MetricsRecorder receives the outcome of every service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a span started by a Tracer.
type TraceSpan interface {
	End(err error)
}

var expvarSeq uint64

// OperationStats aggregates the outcomes observed for one operation.
type OperationStats struct {
	Successes  int64   `json:"successes"`
	Errors     int64   `json:"errors"`
	DurationMS float64 `json:"duration_ms_total"`
}

// ExpvarRecorder publishes aggregate timing and result counters via
// expvar, for deployments that prefer process-local metrics.
type ExpvarRecorder struct {
	name  string
	mu    sync.Mutex
	stats map[string]*OperationStats
}

// ExpvarSnapshot is a point-in-time copy of the aggregated counters.
type ExpvarSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// NewExpvarRecorder constructs an expvar-backed recorder published
// under the supplied name. When name is empty, a unique one is generated.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		name = fmt.Sprintf("brewcore_service_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarRecorder{
		name:  name,
		stats: make(map[string]*OperationStats),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name reports the expvar export name the recorder publishes under.
func (r *ExpvarRecorder) Name() string { return r.name }

// Snapshot copies the aggregated counters without retaining references.
func (r *ExpvarRecorder) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make(map[string]OperationStats, len(r.stats))
	for op, st := range r.stats {
		ops[op] = *st
	}
	return ExpvarSnapshot{
		Operations: ops,
		RecordedAt: time.Now().UTC(),
	}
}

// Observe folds one operation outcome into the aggregates.
func (r *ExpvarRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stats[operation]
	if st == nil {
		st = &OperationStats{}
		r.stats[operation] = st
	}
	if success {
		st.Successes++
	} else {
		st.Errors++
	}
	st.DurationMS += float64(duration) / float64(time.Millisecond)
}

// TraceEntry is one finished span as emitted by LineTracer.
type TraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	EndedAt    time.Time `json:"ended_at"`
}

// LineTracer writes finished spans as JSON lines and keeps them in memory
// for inspection.
type LineTracer struct {
	mu      sync.Mutex
	entries []TraceEntry
	enc     *json.Encoder
}

// NewLineTracer constructs a tracer that writes spans as JSON lines to the
// writer. All encoded spans are retained for inspection via Entries.
func NewLineTracer(w io.Writer) *LineTracer {
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	return &LineTracer{enc: enc}
}

// Entries copies out every span recorded so far.
func (t *LineTracer) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer. The returned span records its entry when ended.
func (t *LineTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	started := time.Now()
	return ctx, endFunc(func(err error) {
		entry := TraceEntry{
			Operation:  operation,
			Status:     "success",
			DurationMS: float64(time.Since(started)) / float64(time.Millisecond),
			EndedAt:    time.Now().UTC(),
		}
		if err != nil {
			entry.Status = "error"
			entry.Error = err.Error()
		}
		t.mu.Lock()
		t.entries = append(t.entries, entry)
		if t.enc != nil {
			_ = t.enc.Encode(entry)
		}
		t.mu.Unlock()
	})
}

// endFunc adapts a closure to the TraceSpan interface.
type endFunc func(error)

func (f endFunc) End(err error) { f(err) }
