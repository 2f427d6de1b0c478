package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRunStart    EventType = "run_start"
	EventRunEnd      EventType = "run_end"
	EventActionStart EventType = "action_start"
	EventActionEnd   EventType = "action_end"
	EventBranch      EventType = "branch"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	Signal    string    `json:"signal"`
}

// RunEvent marks the start or end of a run.
type RunEvent struct {
	EventBase
	Status   RunStatus     `json:"status"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// ActionEvent marks entry into or exit from an action.
type ActionEvent struct {
	EventBase
	Action   string        `json:"action"`
	Outputs  []string      `json:"outputs,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
}

// BranchEvent records the output selected by a branching action.
type BranchEvent struct {
	EventBase
	Action string `json:"action"`
	Output string `json:"output"`
}

// LifecycleHooks defines callbacks for engine observability.
// Every field is optional.
type LifecycleHooks struct {
	OnRunStart    func(context.Context, *RunEvent)
	OnRunEnd      func(context.Context, *RunEvent)
	OnActionStart func(context.Context, *ActionEvent)
	OnActionEnd   func(context.Context, *ActionEvent)
	OnBranch      func(context.Context, *BranchEvent)
}
