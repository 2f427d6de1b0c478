package observability

import (
	"context"
	"sync"

	"github.com/aretw0/pathflow/pkg/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer turns runs into OpenTelemetry spans: one span per run, with one
// child span per action. Branch selections are recorded as events on the
// run span.
type Tracer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	runs  map[string]trace.Span
	steps map[string]trace.Span
}

// NewTracer creates a Tracer from an OpenTelemetry tracer
// (e.g. otel.Tracer("pathflow")).
func NewTracer(tracer trace.Tracer) *Tracer {
	return &Tracer{
		tracer: tracer,
		runs:   make(map[string]trace.Span),
		steps:  make(map[string]trace.Span),
	}
}

// Hooks returns lifecycle hooks that open and close spans.
func (t *Tracer) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart:    t.runStart,
		OnRunEnd:      t.runEnd,
		OnActionStart: t.actionStart,
		OnActionEnd:   t.actionEnd,
		OnBranch:      t.branch,
	}
}

func (t *Tracer) runStart(ctx context.Context, e *domain.RunEvent) {
	_, span := t.tracer.Start(ctx, "signal "+e.Signal,
		trace.WithTimestamp(e.Timestamp),
		trace.WithAttributes(
			attribute.String("pathflow.signal", e.Signal),
			attribute.String("pathflow.run_id", e.RunID),
		),
	)
	t.mu.Lock()
	t.runs[e.RunID] = span
	t.mu.Unlock()
}

func (t *Tracer) runEnd(ctx context.Context, e *domain.RunEvent) {
	t.mu.Lock()
	span, ok := t.runs[e.RunID]
	delete(t.runs, e.RunID)
	t.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.String("pathflow.status", string(e.Status)))
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.Timestamp))
}

func (t *Tracer) actionStart(ctx context.Context, e *domain.ActionEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent := ctx
	if run, ok := t.runs[e.RunID]; ok {
		parent = trace.ContextWithSpan(ctx, run)
	}
	_, span := t.tracer.Start(parent, "action "+e.Action,
		trace.WithTimestamp(e.Timestamp),
		trace.WithAttributes(
			attribute.String("pathflow.action", e.Action),
			attribute.StringSlice("pathflow.outputs", e.Outputs),
		),
	)
	// Actions of one run never overlap, so the run ID identifies the open span.
	t.steps[e.RunID] = span
}

func (t *Tracer) actionEnd(ctx context.Context, e *domain.ActionEvent) {
	t.mu.Lock()
	span, ok := t.steps[e.RunID]
	delete(t.steps, e.RunID)
	t.mu.Unlock()
	if !ok {
		return
	}
	if e.IsError {
		span.SetStatus(codes.Error, "action failed")
	}
	span.End(trace.WithTimestamp(e.Timestamp))
}

func (t *Tracer) branch(ctx context.Context, e *domain.BranchEvent) {
	t.mu.Lock()
	span, ok := t.runs[e.RunID]
	t.mu.Unlock()
	if !ok {
		return
	}
	span.AddEvent("branch", trace.WithTimestamp(e.Timestamp), trace.WithAttributes(
		attribute.String("pathflow.action", e.Action),
		attribute.String("pathflow.output", e.Output),
	))
}
