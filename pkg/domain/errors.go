package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownSignal is returned when a signal name is not registered.
var ErrUnknownSignal = errors.New("unknown signal")

// ErrRunNotFound is returned when a run ID cannot be found in the run store.
var ErrRunNotFound = errors.New("run not found")

// ErrRunInFlight is returned when a caller-supplied run ID is already running.
var ErrRunInFlight = errors.New("run already in flight")

// ErrKeyNotFound is returned by key-value stores for missing keys.
var ErrKeyNotFound = errors.New("key not found")

var (
	// ErrUndeclaredOutput marks a Path naming an output its action never declared.
	ErrUndeclaredOutput = errors.New("output not declared by action")
	// ErrUnwiredOutput marks a declared output with no branch in the tree.
	ErrUnwiredOutput = errors.New("output not wired in sequence tree")
	// ErrStaleOutput marks a Path built from another action's bindings.
	ErrStaleOutput = errors.New("output binding belongs to another action")
	// ErrMissingOutput marks a plain result from a branching action under the strict policy.
	ErrMissingOutput = errors.New("action with outputs returned no path")
)

// RoutingError reports a mismatch between action declarations and the tree.
type RoutingError struct {
	Signal string
	Action string
	Output string
	Err    error
}

func (e *RoutingError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("routing %s/%s: %v", e.Signal, e.Action, e.Err)
	}
	return fmt.Sprintf("routing %s/%s -> %q: %v", e.Signal, e.Action, e.Output, e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// ActionError wraps a failure raised by an action body.
type ActionError struct {
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// ProviderError wraps a failure raised by a provider before an action ran.
type ProviderError struct {
	Provider string
	Action   string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s (before %s): %v", e.Provider, e.Action, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ValidationError reports a structural problem found when registering a signal.
type ValidationError struct {
	Signal  string
	Action  string
	Problem string
}

func (e *ValidationError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("signal %s: %s", e.Signal, e.Problem)
	}
	return fmt.Sprintf("signal %s, action %s: %s", e.Signal, e.Action, e.Problem)
}

// ValidationErrors aggregates every problem found in one signal.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 1 {
		return v[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(v))
	for i, err := range v {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}
