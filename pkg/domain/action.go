package domain

import (
	"context"
	"slices"
)

// ActionFunc is the body of an action.
// Returning a *Path selects a branch; any other value is forwarded as the
// payload of the next item in the current sequence.
type ActionFunc func(ctx context.Context, rc *Context, decl Declaration, payload any) (any, error)

// Action is a named unit of work with an optional set of declared outputs.
type Action struct {
	Name    string
	Outputs []string
	Fn      ActionFunc
}

// Declaration returns the metadata the executor and providers see.
func (a *Action) Declaration() Declaration {
	return Declaration{Name: a.Name, Outputs: slices.Clone(a.Outputs)}
}

// Declaration describes an action without its body.
type Declaration struct {
	Name    string   `json:"name" yaml:"name"`
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// HasOutputs reports whether the action can branch.
func (d Declaration) HasOutputs() bool {
	return len(d.Outputs) > 0
}

// Declares reports whether output is one of the declared names.
func (d Declaration) Declares(output string) bool {
	return slices.Contains(d.Outputs, output)
}

// Item is an element of a Sequence: either a *Step or a nested Sequence.
type Item interface {
	isItem()
}

// Step runs one action and, optionally, one of its wired branches.
type Step struct {
	Action *Action
	// Paths maps output names to the sub-sequence run when that output is selected.
	Paths map[string]Sequence
}

func (*Step) isItem() {}

// Sequence is an ordered list of items executed one after another.
type Sequence struct {
	Items []Item
}

func (Sequence) isItem() {}

// Len returns the number of direct items.
func (s Sequence) Len() int { return len(s.Items) }

// Signal is a named sequence tree triggered from outside the engine.
type Signal struct {
	Name        string
	Description string
	Sequence    Sequence
}

// Walk visits every step of the sequence tree depth-first, including steps
// inside branches.
func (s Sequence) Walk(fn func(step *Step)) {
	for _, item := range s.Items {
		switch it := item.(type) {
		case *Step:
			fn(it)
			for _, name := range sortedKeys(it.Paths) {
				it.Paths[name].Walk(fn)
			}
		case Sequence:
			it.Walk(fn)
		}
	}
}
