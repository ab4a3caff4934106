package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountsByOutcome(t *testing.T) {
	m := &Metrics{}
	ctx := context.Background()

	m.Record(ctx, AuditRecord{Outcome: "ok"})
	m.Record(ctx, AuditRecord{Outcome: "ok"})
	m.Record(ctx, AuditRecord{Outcome: string(CodeSchemaViolation)})
	m.Record(ctx, AuditRecord{Outcome: string(CodeAmbiguity)})
	m.Record(ctx, AuditRecord{Outcome: string(CodeTimeout)})
	m.Record(ctx, AuditRecord{Outcome: string(CodeStorageUnavailable)})
	m.Record(ctx, AuditRecord{Outcome: string(CodeCompileInvariant)})

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Executions)
	assert.Equal(t, int64(2), snap.Rejections)
	assert.Equal(t, int64(1), snap.Timeouts)
	assert.Equal(t, int64(2), snap.Failures)
}

func TestMultiSink_FansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}

	MultiSink{a, b}.Record(context.Background(), AuditRecord{ID: "rec-1"})

	assert.Len(t, a.records(), 1)
	assert.Len(t, b.records(), 1)
}

func TestNewRecordID_Unique(t *testing.T) {
	assert.NotEqual(t, NewRecordID(), NewRecordID())
}
