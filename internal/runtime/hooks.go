package runtime

import (
	"context"
	"time"

	"github.com/aretw0/pathflow/pkg/domain"
)

func (e *Engine) base(kind domain.EventType, runID, signal string) domain.EventBase {
	return domain.EventBase{
		Timestamp: e.now(),
		Type:      kind,
		RunID:     runID,
		Signal:    signal,
	}
}

func (e *Engine) emitRunStart(ctx context.Context, result *domain.Result) {
	if e.hooks.OnRunStart == nil {
		return
	}
	e.hooks.OnRunStart(ctx, &domain.RunEvent{
		EventBase: e.base(domain.EventRunStart, result.RunID, result.Signal),
		Status:    result.Status,
	})
}

func (e *Engine) emitRunEnd(ctx context.Context, result *domain.Result, err error) {
	if e.hooks.OnRunEnd == nil {
		return
	}
	e.hooks.OnRunEnd(ctx, &domain.RunEvent{
		EventBase: e.base(domain.EventRunEnd, result.RunID, result.Signal),
		Status:    result.Status,
		Duration:  result.Duration(),
		Err:       err,
	})
}

func (e *Engine) emitActionStart(ctx context.Context, r *run, decl domain.Declaration) {
	if e.hooks.OnActionStart == nil {
		return
	}
	e.hooks.OnActionStart(ctx, &domain.ActionEvent{
		EventBase: e.base(domain.EventActionStart, r.runID, r.signal),
		Action:    decl.Name,
		Outputs:   decl.Outputs,
	})
}

func (e *Engine) emitActionEnd(ctx context.Context, r *run, decl domain.Declaration, d time.Duration, failed bool) {
	if e.hooks.OnActionEnd == nil {
		return
	}
	e.hooks.OnActionEnd(ctx, &domain.ActionEvent{
		EventBase: e.base(domain.EventActionEnd, r.runID, r.signal),
		Action:    decl.Name,
		Outputs:   decl.Outputs,
		Duration:  d,
		IsError:   failed,
	})
}

func (e *Engine) emitBranch(ctx context.Context, r *run, action, output string) {
	if e.hooks.OnBranch == nil {
		return
	}
	e.hooks.OnBranch(ctx, &domain.BranchEvent{
		EventBase: e.base(domain.EventBranch, r.runID, r.signal),
		Action:    action,
		Output:    output,
	})
}
