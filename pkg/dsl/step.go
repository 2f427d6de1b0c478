package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/pathflow/pkg/domain"
)

// ErrDuplicateBranch marks an output wired to more than one branch.
var ErrDuplicateBranch = errors.New("output already has a branch")

// Action declares an action inline.
func Action(name string, fn domain.ActionFunc, outputs ...string) *domain.Action {
	return &domain.Action{Name: name, Outputs: outputs, Fn: fn}
}

// Seq groups items into a sequence.
func Seq(items ...domain.Item) domain.Sequence {
	return domain.Sequence{Items: items}
}

// BranchSpec is one labeled branch for Step.
type BranchSpec struct {
	Output string
	Items  []domain.Item
}

// Branch labels a branch sequence with an output name.
func Branch(output string, items ...domain.Item) BranchSpec {
	return BranchSpec{Output: output, Items: items}
}

// Step builds a step with its branches, for use inside On and Then.
// Like regexp.MustCompile it panics on a malformed literal: two branches
// with the same output. Use NewStep to get the error instead.
func Step(a *domain.Action, branches ...BranchSpec) *domain.Step {
	s, err := NewStep(a, branches...)
	if err != nil {
		panic("dsl.Step: " + err.Error())
	}
	return s
}

// NewStep builds a step with its branches and rejects repeated outputs.
func NewStep(a *domain.Action, branches ...BranchSpec) (*domain.Step, error) {
	s := &domain.Step{Action: a}
	if len(branches) > 0 {
		s.Paths = make(map[string]domain.Sequence, len(branches))
		for _, b := range branches {
			if _, dup := s.Paths[b.Output]; dup {
				return nil, fmt.Errorf("%s: %q: %w", actionName(a), b.Output, ErrDuplicateBranch)
			}
			s.Paths[b.Output] = Seq(b.Items...)
		}
	}
	return s, nil
}

func actionName(a *domain.Action) string {
	if a == nil {
		return "<nil>"
	}
	return a.Name
}
