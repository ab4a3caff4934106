// Package pipeline wires the four stages of the analytical query compiler:
// schema validation, normalization, plan compilation, and scoped execution.
//
// Data flows strictly forward. The first three stages are pure and run
// inline; only the executor blocks. Requests share no mutable state beyond
// the audit/metrics sink, so any number may run concurrently.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/fintalk/queryc/internal/exec"
	"github.com/fintalk/queryc/internal/log"
	"github.com/fintalk/queryc/internal/normalize"
	"github.com/fintalk/queryc/internal/plan"
	"github.com/fintalk/queryc/internal/spec"
)

// Request is one analytical question. Raw or Doc carries the untrusted
// query spec; Scope, AsOf and Location come from the trusted session
// collaborator, never from the spec itself.
type Request struct {
	// Raw is the encoded spec as received from the transport. Ignored when
	// Doc is set.
	Raw []byte

	// Doc is a pre-decoded spec tree (YAML/CUE loaders produce these).
	Doc map[string]any

	// Scope is the trusted authorization context.
	Scope exec.Scope

	// AsOf anchors relative date periods.
	AsOf time.Time

	// Location is the tenant's timezone; nil means UTC.
	Location *time.Location
}

// Pipeline answers analytical requests end to end.
type Pipeline struct {
	caps     spec.Caps
	executor *exec.Executor
	audit    exec.AuditSink
	log      *log.Logger
}

// New builds a pipeline. The sink receives one record per request,
// including rejections that never reach the executor; it should be the
// same sink the executor was built with.
func New(executor *exec.Executor, caps spec.Caps, sink exec.AuditSink, logger *log.Logger) *Pipeline {
	if sink == nil {
		sink = &exec.Metrics{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Pipeline{
		caps:     caps,
		executor: executor,
		audit:    sink,
		log:      logger.WithComponent("pipeline"),
	}
}

// Answer validates, normalizes, compiles, and executes one request.
//
// Errors come back classified (see exec.Code); an empty result is not an
// error. Rejected requests read zero rows and still produce an audit
// record.
func (p *Pipeline) Answer(ctx context.Context, req Request) (*exec.ResultShape, error) {
	compiled, err := p.buildPlan(req)
	if err != nil {
		p.auditFailure(ctx, req, err)
		return nil, err
	}
	return p.executor.Execute(ctx, compiled, req.Scope)
}

// BuildPlan runs the pure stages only: validate, normalize, compile. Used
// by Answer and by tooling that wants to inspect a plan without executing
// it. No audit record is emitted.
func (p *Pipeline) BuildPlan(req Request) (*plan.Plan, error) {
	return p.buildPlan(req)
}

func (p *Pipeline) buildPlan(req Request) (*plan.Plan, error) {
	doc := req.Doc
	if doc == nil {
		decoded, err := spec.Decode(req.Raw, p.caps)
		if err != nil {
			return nil, exec.NewQueryError(exec.CodeSchemaViolation, err)
		}
		doc = decoded
	}

	valid, err := spec.Validate(doc, p.caps)
	if err != nil {
		return nil, exec.NewQueryError(exec.CodeSchemaViolation, err)
	}

	canonical, notes, err := normalize.Normalize(valid, req.AsOf, req.Location)
	for _, n := range notes {
		switch n.Kind {
		case normalize.NoteSecurity:
			p.log.Warn("normalization security note", "note", n.Message)
		default:
			p.log.Info("normalization note", "kind", string(n.Kind), "note", n.Message)
		}
	}
	if err != nil {
		var amb *normalize.AmbiguityError
		if errors.As(err, &amb) {
			return nil, exec.NewQueryError(exec.CodeAmbiguity, err)
		}
		return nil, exec.NewQueryError(exec.CodeCompileInvariant, err)
	}

	compiled, err := plan.Compile(canonical)
	if err != nil {
		// Unreachable for canonical specs; loud, never swallowed.
		p.log.Error("plan compilation invariant violated", "err", err)
		return nil, exec.NewQueryError(exec.CodeCompileInvariant, err)
	}

	return compiled, nil
}

// auditFailure records a request that never reached the executor.
func (p *Pipeline) auditFailure(ctx context.Context, req Request, err error) {
	p.audit.Record(ctx, exec.AuditRecord{
		ID:          exec.NewRecordID(),
		At:          time.Now(),
		Outcome:     string(exec.CodeOf(err)),
		TenantCount: req.Scope.Size(),
		Detail:      err.Error(),
	})
}
