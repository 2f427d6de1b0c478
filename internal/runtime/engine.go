package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/ports"
)

// OutputPolicy decides what happens when an action that declares outputs
// returns a plain value instead of a Path.
type OutputPolicy int

const (
	// OutputPolicyLinear continues with the next item of the current sequence.
	OutputPolicyLinear OutputPolicy = iota
	// OutputPolicyStrict fails the run with a RoutingError.
	OutputPolicyStrict
)

// Engine is the signal executor. It is stateless between runs and safe for
// concurrent use; each run owns its own context.
type Engine struct {
	providers []ports.Provider
	paths     *PathProvider
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	policy    OutputPolicy
	now       func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithProviders sets the provider chain run before every action.
// The output continuation factory always runs after them.
func WithProviders(providers ...ports.Provider) EngineOption {
	return func(e *Engine) {
		e.providers = append(e.providers, providers...)
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithOutputPolicy sets the policy for plain results from branching actions.
func WithOutputPolicy(policy OutputPolicy) EngineOption {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a new executor.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		paths:  NewPathProvider(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute walks the signal's tree with payload on rc, which must be fresh for
// this run. The returned Result is never nil; on failure it carries the
// context as it stood when the error happened.
func (e *Engine) Execute(ctx context.Context, runID string, sig domain.Signal, rc *domain.Context, payload any) (*domain.Result, error) {
	if rc == nil {
		rc = domain.NewContext(nil)
	}
	r := &run{
		engine: e,
		signal: sig.Name,
		runID:  runID,
		rc:     rc,
		logger: e.logger.With("signal", sig.Name, "run_id", runID),
	}

	result := &domain.Result{
		RunID:     runID,
		Signal:    sig.Name,
		Status:    domain.StatusPending,
		StartedAt: e.now(),
	}

	ctx = domain.WithRunInfo(ctx, domain.RunInfo{RunID: runID, Signal: sig.Name})

	result.Status = domain.StatusRunning
	e.emitRunStart(ctx, result)
	r.logger.Debug("run started")

	out, err := r.sequence(ctx, sig.Sequence, payload)

	e.paths.Unbind(rc)
	result.FinishedAt = e.now()
	result.Trace = r.trace
	result.Context = rc.Snapshot()
	if err != nil {
		result.Status = domain.StatusFailed
		result.Error = err.Error()
	} else {
		result.Status = domain.StatusCompleted
		result.Payload = out
	}

	if finErr := e.finish(ctx, rc, result); finErr != nil && err == nil {
		err = finErr
		result.Status = domain.StatusFailed
		result.Error = err.Error()
		result.Payload = nil
	}

	e.emitRunEnd(ctx, result, err)
	if err != nil {
		r.logger.Debug("run failed", "err", err)
	} else {
		r.logger.Debug("run completed", "steps", len(result.Trace))
	}
	return result, err
}

// finish gives Finisher providers a last look at the context.
// The first error is reported as a ProviderError; all finishers still run.
func (e *Engine) finish(ctx context.Context, rc *domain.Context, result *domain.Result) error {
	var first error
	for _, p := range e.providers {
		f, ok := p.(ports.Finisher)
		if !ok {
			continue
		}
		if err := f.Finish(ctx, rc, result); err != nil {
			e.logger.Warn("provider finish failed", "provider", p.Name(), "run_id", result.RunID, "err", err)
			if first == nil {
				first = &domain.ProviderError{Provider: p.Name(), Action: "(end of run)", Err: err}
			}
		}
	}
	result.Context = rc.Snapshot()
	return first
}

// run holds the per-execution state. It is never shared between goroutines.
type run struct {
	engine *Engine
	signal string
	runID  string
	rc     *domain.Context
	trace  []domain.TraceEntry
	logger *slog.Logger
}

func (r *run) sequence(ctx context.Context, seq domain.Sequence, payload any) (any, error) {
	for _, item := range seq.Items {
		var err error
		switch it := item.(type) {
		case *domain.Step:
			payload, err = r.step(ctx, it, payload)
		case domain.Sequence:
			payload, err = r.sequence(ctx, it, payload)
		default:
			err = fmt.Errorf("unsupported sequence item %T", item)
		}
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func (r *run) step(ctx context.Context, step *domain.Step, payload any) (any, error) {
	e := r.engine
	decl := step.Action.Declaration()

	// 1. Provider chain on the undecorated context.
	e.paths.Unbind(r.rc)
	for _, p := range e.providers {
		if err := p.Provide(ctx, r.rc, decl, payload); err != nil {
			return nil, &domain.ProviderError{Provider: p.Name(), Action: decl.Name, Err: err}
		}
	}

	// 2. Output continuations, always last.
	owner := e.paths.Bind(r.rc, decl)

	// 3. Invoke.
	start := e.now()
	e.emitActionStart(ctx, r, decl)
	out, err := r.invoke(ctx, step.Action, decl, payload)
	e.paths.Unbind(r.rc)
	e.emitActionEnd(ctx, r, decl, e.now().Sub(start), err != nil)
	if err != nil {
		return nil, &domain.ActionError{Action: decl.Name, Err: err}
	}

	// 4. Route.
	path, isPath := out.(*domain.Path)
	if !isPath || path == nil {
		if decl.HasOutputs() && e.policy == OutputPolicyStrict {
			return nil, r.routingError(decl.Name, "", domain.ErrMissingOutput)
		}
		r.trace = append(r.trace, domain.TraceEntry{Action: decl.Name})
		if isPath {
			return nil, nil
		}
		return out, nil
	}

	if path.Owner() != owner {
		return nil, r.routingError(decl.Name, path.Output(), domain.ErrStaleOutput)
	}
	if !decl.Declares(path.Output()) {
		return nil, r.routingError(decl.Name, path.Output(), domain.ErrUndeclaredOutput)
	}
	branch, wired := step.Paths[path.Output()]
	if !wired {
		return nil, r.routingError(decl.Name, path.Output(), domain.ErrUnwiredOutput)
	}

	r.trace = append(r.trace, domain.TraceEntry{Action: decl.Name, Output: path.Output()})
	e.emitBranch(ctx, r, decl.Name, path.Output())
	r.logger.Debug("branch selected", "action", decl.Name, "output", path.Output())

	return r.sequence(ctx, branch, path.Payload())
}

// invoke runs the action body, converting panics into errors.
func (r *run) invoke(ctx context.Context, action *domain.Action, decl domain.Declaration, payload any) (out any, err error) {
	if action.Fn == nil {
		return nil, errors.New("action has no function")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return action.Fn(ctx, r.rc, decl, payload)
}

func (r *run) routingError(action, output string, cause error) error {
	return &domain.RoutingError{Signal: r.signal, Action: action, Output: output, Err: cause}
}
