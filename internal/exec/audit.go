package exec

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fintalk/queryc/internal/log"
	"github.com/fintalk/queryc/internal/spec"
)

// AuditRecord is the single persistent side effect of the pipeline: one
// structured record per request, covering rejections as well as
// executions. The record describes the shape of the query, never the bound
// values; Detail may carry internal diagnostics that must not reach users.
type AuditRecord struct {
	ID      string
	At      time.Time
	Outcome string // "ok" or a failure Code

	Entity     spec.Entity
	GroupBy    spec.GroupBy
	Aggregates []string
	SortKeys   []string

	TenantCount int
	RowCount    int
	Truncated   bool
	Elapsed     time.Duration

	// PlanFingerprint correlates repeated query shapes across requests.
	PlanFingerprint string

	// Detail carries internal failure detail (validation violations,
	// storage errors). Audit-only; never rendered to users.
	Detail string
}

// AuditSink receives audit records. Implementations must tolerate
// concurrent calls; the pipeline never reads back from the sink.
type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord)
}

// NewRecordID returns a fresh audit record id.
func NewRecordID() string {
	return uuid.NewString()
}

// SlogSink writes audit records to a structured logger.
type SlogSink struct {
	Log *log.Logger
}

// Record implements AuditSink.
func (s *SlogSink) Record(ctx context.Context, rec AuditRecord) {
	s.Log.InfoContext(ctx, "query audit",
		"id", rec.ID,
		"outcome", rec.Outcome,
		"entity", string(rec.Entity),
		"group_by", string(rec.GroupBy),
		"aggregates", rec.Aggregates,
		"sort", rec.SortKeys,
		"tenants", rec.TenantCount,
		"rows", rec.RowCount,
		"truncated", rec.Truncated,
		"elapsed", rec.Elapsed,
		"plan", rec.PlanFingerprint,
		"detail", rec.Detail,
	)
}

// Metrics is a bounded in-memory counter set, the only mutable state the
// pipeline shares between requests. It doubles as an AuditSink.
type Metrics struct {
	executions atomic.Int64
	rejections atomic.Int64
	timeouts   atomic.Int64
	failures   atomic.Int64
}

// Record implements AuditSink by bumping the counter for the outcome.
func (m *Metrics) Record(_ context.Context, rec AuditRecord) {
	switch Code(rec.Outcome) {
	case CodeSchemaViolation, CodeAmbiguity:
		m.rejections.Add(1)
	case CodeTimeout:
		m.timeouts.Add(1)
	case CodeCompileInvariant, CodeStorageUnavailable:
		m.failures.Add(1)
	default:
		m.executions.Add(1)
	}
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Executions int64
	Rejections int64
	Timeouts   int64
	Failures   int64
}

// Snapshot returns current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Executions: m.executions.Load(),
		Rejections: m.rejections.Load(),
		Timeouts:   m.timeouts.Load(),
		Failures:   m.failures.Load(),
	}
}

// MultiSink fans an audit record out to several sinks.
type MultiSink []AuditSink

// Record implements AuditSink.
func (ms MultiSink) Record(ctx context.Context, rec AuditRecord) {
	for _, s := range ms {
		s.Record(ctx, rec)
	}
}

// nopSink drops records; used when no sink is configured.
type nopSink struct{}

func (nopSink) Record(context.Context, AuditRecord) {}
