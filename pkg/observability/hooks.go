package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/pathflow/pkg/domain"
)

// Combine fans every event out to each of hooks, in order.
// Nil callbacks are skipped.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			for _, h := range hooks {
				if h.OnRunStart != nil {
					h.OnRunStart(ctx, e)
				}
			}
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			for _, h := range hooks {
				if h.OnRunEnd != nil {
					h.OnRunEnd(ctx, e)
				}
			}
		},
		OnActionStart: func(ctx context.Context, e *domain.ActionEvent) {
			for _, h := range hooks {
				if h.OnActionStart != nil {
					h.OnActionStart(ctx, e)
				}
			}
		},
		OnActionEnd: func(ctx context.Context, e *domain.ActionEvent) {
			for _, h := range hooks {
				if h.OnActionEnd != nil {
					h.OnActionEnd(ctx, e)
				}
			}
		},
		OnBranch: func(ctx context.Context, e *domain.BranchEvent) {
			for _, h := range hooks {
				if h.OnBranch != nil {
					h.OnBranch(ctx, e)
				}
			}
		},
	}
}

// LogHooks logs every lifecycle event. Runs log at Info, actions and
// branches at Debug, failures at Warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_start", "signal", e.Signal, "run_id", e.RunID)
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "run_end", "signal", e.Signal, "run_id", e.RunID,
					"status", e.Status, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "run_end", "signal", e.Signal, "run_id", e.RunID,
				"status", e.Status, "duration", e.Duration)
		},
		OnActionStart: func(ctx context.Context, e *domain.ActionEvent) {
			logger.DebugContext(ctx, "action_start", "run_id", e.RunID, "action", e.Action)
		},
		OnActionEnd: func(ctx context.Context, e *domain.ActionEvent) {
			level := slog.LevelDebug
			if e.IsError {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "action_end", "run_id", e.RunID, "action", e.Action,
				"duration", e.Duration, "is_error", e.IsError)
		},
		OnBranch: func(ctx context.Context, e *domain.BranchEvent) {
			logger.DebugContext(ctx, "branch", "run_id", e.RunID, "action", e.Action, "output", e.Output)
		},
	}
}
