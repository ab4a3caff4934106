package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintalk/queryc/internal/exec"
	"github.com/fintalk/queryc/internal/spec"
	"github.com/fintalk/queryc/internal/store"
)

// asOf is a fixed Wednesday: 2025-08-20.
var asOf = time.Date(2025, time.August, 20, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type recordingSink struct {
	mu      sync.Mutex
	metrics exec.Metrics
	recs    []exec.AuditRecord
}

func (r *recordingSink) Record(ctx context.Context, rec exec.AuditRecord) {
	r.metrics.Record(ctx, rec)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

func (r *recordingSink) records() []exec.AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]exec.AuditRecord{}, r.recs...)
}

func newTestPipeline(t *testing.T) (*Pipeline, *recordingSink) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ops := []store.Operation{
		{ID: "a-1", TenantID: "tenant-a", Kind: "expense", AmountCents: 5000, CategoryID: 2, Category: "transport", Note: "taxi to airport", OccurredOn: day(2025, time.August, 5)},
		{ID: "a-2", TenantID: "tenant-a", Kind: "expense", AmountCents: 120000, CategoryID: 3, Category: "rent", Note: "monthly rent", OccurredOn: day(2025, time.August, 1)},
		{ID: "a-3", TenantID: "tenant-a", Kind: "expense", AmountCents: 30000, CategoryID: 1, Category: "grocery", Note: "weekly shop", OccurredOn: day(2025, time.August, 10)},
		{ID: "a-4", TenantID: "tenant-a", Kind: "expense", AmountCents: 2500, CategoryID: 1, Category: "grocery", Note: "milk and bread", OccurredOn: day(2025, time.August, 12)},
		{ID: "a-5", TenantID: "tenant-a", Kind: "income", AmountCents: 500000, CategoryID: 9, Category: "salary", Note: "", OccurredOn: day(2025, time.August, 15)},
		{ID: "b-1", TenantID: "tenant-b", Kind: "expense", AmountCents: 7700, CategoryID: 1, Category: "grocery", Note: "corner store", OccurredOn: day(2025, time.August, 6)},
	}
	require.NoError(t, st.InsertAll(context.Background(), ops))

	sink := &recordingSink{}
	executor := exec.New(st, 0, sink, nil)
	return New(executor, spec.DefaultCaps(), sink, nil), sink
}

func request(t *testing.T, raw string, tenants ...string) Request {
	t.Helper()
	scope, err := exec.NewScope(tenants...)
	require.NoError(t, err)
	return Request{Raw: []byte(raw), Scope: scope, AsOf: asOf, Location: time.UTC}
}

func TestAnswer_CheapestLargeExpenseThisMonth(t *testing.T) {
	pipe, sink := newTestPipeline(t)

	result, err := pipe.Answer(context.Background(), request(t, `{
		"version": 1,
		"entity": "expense",
		"filters": {
			"date": {"period": "month"},
			"amount": {"min": "50"}
		},
		"sort": [{"by": "amount", "dir": "asc"}],
		"limit": 1
	}`, "tenant-a"))
	require.NoError(t, err)

	require.Equal(t, 1, result.RowCount)
	assert.True(t, result.Truncated)
	assert.Equal(t, int64(5000), result.Rows[0]["amount"])
	assert.Equal(t, "transport", result.Rows[0]["category"])

	require.NotNil(t, result.DateRange)
	assert.Equal(t, day(2025, time.August, 1), result.DateRange.From)
	assert.Equal(t, day(2025, time.August, 31), result.DateRange.To)

	assert.Equal(t, int64(1), sink.metrics.Snapshot().Executions)
}

func TestAnswer_GroupedSpendingByCategory(t *testing.T) {
	pipe, _ := newTestPipeline(t)

	result, err := pipe.Answer(context.Background(), request(t, `{
		"version": 1,
		"entity": "expense",
		"filters": {
			"date": {"between": ["2025-08-01", "2025-08-31"]},
			"category": {"contains": "grocery"}
		},
		"group_by": "category",
		"aggregate": ["sum", "count"]
	}`, "tenant-a"))
	require.NoError(t, err)

	require.Equal(t, 1, result.RowCount)
	row := result.Rows[0]
	assert.Equal(t, "grocery", row["category_label"])
	assert.Equal(t, int64(32500), row["sum"])
	assert.Equal(t, int64(2), row["count"])
}

func TestAnswer_UnknownKeyIsRejectedBeforeAnyRead(t *testing.T) {
	pipe, sink := newTestPipeline(t)

	_, err := pipe.Answer(context.Background(), request(t, `{
		"version": 1,
		"entity": "expense",
		"exec": "DROP TABLE operations"
	}`, "tenant-a"))
	require.Error(t, err)
	assert.Equal(t, exec.CodeSchemaViolation, exec.CodeOf(err))

	var qe *exec.QueryError
	require.ErrorAs(t, err, &qe)
	assert.NotContains(t, qe.Message, "exec", "user message never echoes the payload")

	recs := sink.records()
	require.Len(t, recs, 1, "rejections are audited")
	assert.Equal(t, string(exec.CodeSchemaViolation), recs[0].Outcome)
	assert.Zero(t, recs[0].RowCount)
	assert.Equal(t, int64(1), sink.metrics.Snapshot().Rejections)

	// The table is still there.
	result, err := pipe.Answer(context.Background(), request(t,
		`{"version": 1, "entity": "expense"}`, "tenant-a"))
	require.NoError(t, err)
	assert.Equal(t, 4, result.RowCount)
}

func TestAnswer_PayloadCannotWidenItsOwnScope(t *testing.T) {
	pipe, _ := newTestPipeline(t)

	// The payload claims tenant-b; the trusted scope says tenant-a. The
	// claim is stripped and the read stays inside tenant-a.
	result, err := pipe.Answer(context.Background(), request(t, `{
		"version": 1,
		"entity": "expense",
		"tenant_id": "tenant-b",
		"filters": {"category": {"contains": "grocery"}},
		"group_by": "category",
		"aggregate": ["sum"]
	}`, "tenant-a"))
	require.NoError(t, err)

	require.Equal(t, 1, result.RowCount)
	assert.Equal(t, int64(32500), result.Rows[0]["sum"])
}

func TestBuildPlan_OverlargeLimitIsClamped(t *testing.T) {
	pipe, sink := newTestPipeline(t)

	p, err := pipe.BuildPlan(request(t, `{
		"version": 1,
		"entity": "expense",
		"limit": 5000
	}`, "tenant-a"))
	require.NoError(t, err)
	assert.Equal(t, 100, p.Limit)

	assert.Empty(t, sink.records(), "BuildPlan emits no audit records")
}

func TestBuildPlan_WeekPeriodIsDeterministic(t *testing.T) {
	pipe, _ := newTestPipeline(t)

	raw := `{
		"version": 1,
		"entity": "expense",
		"filters": {"date": {"period": "week"}},
		"aggregate": ["sum"]
	}`

	a, err := pipe.BuildPlan(request(t, raw, "tenant-a"))
	require.NoError(t, err)
	b, err := pipe.BuildPlan(request(t, raw, "tenant-a"))
	require.NoError(t, err)

	// 2025-08-20 is a Wednesday; the Monday-start week is 18..24.
	require.NotNil(t, a.DateRange)
	assert.Equal(t, day(2025, time.August, 18), a.DateRange.From)
	assert.Equal(t, day(2025, time.August, 24), a.DateRange.To)
	assert.Equal(t, a, b)
}

func TestAnswer_LegacyFromToSpelling(t *testing.T) {
	pipe, _ := newTestPipeline(t)

	result, err := pipe.Answer(context.Background(), request(t, `{
		"version": 1,
		"entity": "expense",
		"filters": {"date": {"from": "2025-08-01", "to": "2025-08-31"}},
		"aggregate": ["count"]
	}`, "tenant-a"))
	require.NoError(t, err)

	require.Equal(t, 1, result.RowCount)
	assert.Equal(t, int64(4), result.Rows[0]["count"])
}

func TestAnswer_GroupedWithoutAggregateDefaultsToSum(t *testing.T) {
	pipe, _ := newTestPipeline(t)

	result, err := pipe.Answer(context.Background(), request(t, `{
		"version": 1,
		"entity": "expense",
		"group_by": "category"
	}`, "tenant-a"))
	require.NoError(t, err)

	require.Equal(t, 3, result.RowCount)
	for _, row := range result.Rows {
		assert.Contains(t, row, "sum")
	}

	// The implicit sum is also a sortable key.
	sorted, err := pipe.Answer(context.Background(), request(t, `{
		"version": 1,
		"entity": "expense",
		"group_by": "category",
		"sort": [{"by": "sum", "dir": "desc"}]
	}`, "tenant-a"))
	require.NoError(t, err)
	require.Equal(t, 3, sorted.RowCount)
	assert.Equal(t, int64(120000), sorted.Rows[0]["sum"])
	assert.Equal(t, int64(32500), sorted.Rows[1]["sum"])
	assert.Equal(t, int64(5000), sorted.Rows[2]["sum"])
}

func TestAnswer_CombinedOperationsEntity(t *testing.T) {
	pipe, _ := newTestPipeline(t)

	result, err := pipe.Answer(context.Background(), request(t, `{
		"version": 1,
		"entity": "operation",
		"aggregate": ["count"]
	}`, "tenant-a"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Rows[0]["count"])
}

func TestAnswer_MalformedPayload(t *testing.T) {
	pipe, sink := newTestPipeline(t)

	_, err := pipe.Answer(context.Background(), request(t, `not json at all`, "tenant-a"))
	require.Error(t, err)
	assert.Equal(t, exec.CodeSchemaViolation, exec.CodeOf(err))
	assert.Equal(t, int64(1), sink.metrics.Snapshot().Rejections)
}

func TestAnswer_ConcurrentRequests(t *testing.T) {
	pipe, sink := newTestPipeline(t)

	raw := `{"version": 1, "entity": "expense", "group_by": "category", "aggregate": ["sum"]}`

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = pipe.Answer(context.Background(), request(t, raw, "tenant-a"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(8), sink.metrics.Snapshot().Executions)
}
