// Package exec runs compiled query plans under an enforced authorization
// scope.
//
// The executor is the only stage of the pipeline that blocks on I/O and
// the only one with a side effect (the audit record). Tenant scoping is
// injected here, exactly once per execution, appended after the plan's own
// clauses so nothing inside a plan can widen past it. Execution is
// strictly read-only: the compiled statement must be a single SELECT and
// the recommended store handle rejects writes at the connection level.
package exec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fintalk/queryc/internal/log"
	"github.com/fintalk/queryc/internal/plan"
	"github.com/fintalk/queryc/internal/plansql"
)

// Querier is the query-execution interface the executor consumes. The
// store satisfies it; tests may substitute their own.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DefaultStatementTimeout bounds a single statement when no budget is
// configured. Operational tuning belongs in configuration.
const DefaultStatementTimeout = 2 * time.Second

// Executor executes plans against the ledger.
type Executor struct {
	q       Querier
	timeout time.Duration
	audit   AuditSink
	log     *log.Logger
}

// New creates an executor. A zero timeout falls back to
// DefaultStatementTimeout; a nil sink discards audit records; a nil logger
// discards log output.
func New(q Querier, timeout time.Duration, sink AuditSink, logger *log.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultStatementTimeout
	}
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Executor{q: q, timeout: timeout, audit: sink, log: logger.WithComponent("executor")}
}

// Execute runs one plan under the given scope and returns the typed rows.
//
// Failures come back classified: TIMEOUT when the statement budget fires,
// STORAGE_UNAVAILABLE for storage faults, COMPILE_INVARIANT for plans that
// should not exist. Caller cancellation propagates and aborts the in-flight
// statement. Exactly one audit record is emitted per call.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan, scope Scope) (*ResultShape, error) {
	started := time.Now()

	result, err := e.execute(ctx, p, scope)

	rec := AuditRecord{
		ID:          NewRecordID(),
		At:          started,
		Outcome:     "ok",
		TenantCount: scope.Size(),
		Elapsed:     time.Since(started),
	}
	if p != nil {
		rec.Entity = p.Entity
		rec.GroupBy = p.GroupBy
		for _, a := range p.Aggregates {
			rec.Aggregates = append(rec.Aggregates, string(a))
		}
		for _, k := range p.Order {
			rec.SortKeys = append(rec.SortKeys, k.By+" "+string(k.Dir))
		}
		if fp, fpErr := plan.Fingerprint(p); fpErr == nil {
			rec.PlanFingerprint = fp
		}
	}
	if err != nil {
		rec.Outcome = string(CodeOf(err))
		if rec.Outcome == "" {
			rec.Outcome = "canceled"
		}
		rec.Detail = err.Error()
	} else {
		rec.RowCount = result.RowCount
		rec.Truncated = result.Truncated
	}
	e.audit.Record(ctx, rec)

	return result, err
}

func (e *Executor) execute(ctx context.Context, p *plan.Plan, scope Scope) (*ResultShape, error) {
	if p == nil {
		return nil, NewQueryError(CodeCompileInvariant, fmt.Errorf("nil plan"))
	}
	if scope.Size() == 0 {
		// A request without an authorization context is a bug upstream,
		// never something to satisfy with an unscoped scan.
		return nil, NewQueryError(CodeCompileInvariant, fmt.Errorf("empty authorization scope"))
	}

	// Scope injection happens here, once, after the plan is final. The
	// extra row beyond the limit detects truncation without a count query.
	stmt, err := plansql.Compile(p, scope.TenantIDs(), p.Limit+1)
	if err != nil {
		return nil, NewQueryError(CodeCompileInvariant, fmt.Errorf("compile plan: %w", err))
	}
	if err := assertReadOnly(stmt.SQL); err != nil {
		return nil, NewQueryError(CodeCompileInvariant, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.q.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, e.classify(ctx, err)
	}
	defer rows.Close()

	collected, err := scanRows(rows, stmt.Columns, p.Limit+1)
	if err != nil {
		return nil, e.classify(ctx, err)
	}

	truncated := len(collected) > p.Limit
	if truncated {
		collected = collected[:p.Limit]
	}

	return &ResultShape{
		Columns:   stmt.Columns,
		Rows:      collected,
		RowCount:  len(collected),
		Truncated: truncated,
		Entity:    p.Entity,
		GroupBy:   p.GroupBy,
		DateRange: p.DateRange,
	}, nil
}

// assertReadOnly fails fast on anything but a single SELECT statement. A
// plan needing write capability is a programming error upstream; it must
// never execute with elevated rights.
func assertReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT ") {
		return fmt.Errorf("compiled statement is not a SELECT")
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("compiled statement is not a single statement")
	}
	return nil
}

// classify maps an execution failure to its error class. Deadline expiry is
// a budget timeout; caller cancellation propagates unclassified; anything
// else is the storage collaborator failing.
func (e *Executor) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return NewQueryError(CodeTimeout, err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return err
	default:
		return NewQueryError(CodeStorageUnavailable, err)
	}
}

// scanRows reads up to fetch rows with type-directed scanning.
func scanRows(rows *sql.Rows, cols []plansql.Column, fetch int) ([]Row, error) {
	holders := make([]any, len(cols))
	out := make([]Row, 0, fetch)

	for rows.Next() {
		for i, c := range cols {
			switch c.Type {
			case plansql.TypeCents, plansql.TypeInt:
				holders[i] = new(sql.NullInt64)
			case plansql.TypeFloat:
				holders[i] = new(sql.NullFloat64)
			default:
				holders[i] = new(sql.NullString)
			}
		}
		if err := rows.Scan(holders...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			switch h := holders[i].(type) {
			case *sql.NullInt64:
				if h.Valid {
					row[c.Name] = h.Int64
				}
			case *sql.NullFloat64:
				if h.Valid {
					row[c.Name] = h.Float64
				}
			case *sql.NullString:
				if h.Valid {
					row[c.Name] = h.String
				}
			}
		}
		out = append(out, row)

		if len(out) >= fetch {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return out, nil
}
