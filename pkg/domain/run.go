package domain

import (
	"context"
	"time"
)

// RunStatus is the lifecycle position of a signal run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed" // absorbing
	StatusFailed    RunStatus = "failed"    // absorbing
)

// Terminal reports whether the status is absorbing.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TraceEntry records one executed action and the output it selected, if any.
type TraceEntry struct {
	Action string `json:"action"`
	Output string `json:"output,omitempty"`
}

// Result is what the invoker of a signal receives.
// On failure Context holds the partially mutated state at the time of the error.
type Result struct {
	RunID      string       `json:"run_id"`
	Signal     string       `json:"signal"`
	Status     RunStatus    `json:"status"`
	Payload    any          `json:"payload,omitempty"`
	Context    *Context     `json:"context"`
	Trace      []TraceEntry `json:"trace,omitempty"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Branches returns the outputs selected during the run, in order.
func (r *Result) Branches() []TraceEntry {
	var out []TraceEntry
	for _, e := range r.Trace {
		if e.Output != "" {
			out = append(out, e)
		}
	}
	return out
}

// RunInfo identifies the run an action or provider is executing in.
type RunInfo struct {
	RunID  string
	Signal string
}

type runInfoKey struct{}

// WithRunInfo returns a copy of ctx carrying info.
func WithRunInfo(ctx context.Context, info RunInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, info)
}

// RunInfoFrom extracts the run identity placed by the executor.
func RunInfoFrom(ctx context.Context) (RunInfo, bool) {
	info, ok := ctx.Value(runInfoKey{}).(RunInfo)
	return info, ok
}
