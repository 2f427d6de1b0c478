package dsl

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/registry"
)

// Builder collects signals defined in Go.
// It implements ports.SignalLoader.
type Builder struct {
	reg     *registry.Registry
	signals map[string]*SignalBuilder
	order   []string
}

// Option configures the Builder.
type Option func(*Builder)

// WithRegistry enables Call, which builds actions by registered name.
func WithRegistry(reg *registry.Registry) Option {
	return func(b *Builder) {
		b.reg = reg
	}
}

// New creates a new signal builder.
func New(opts ...Option) *Builder {
	b := &Builder{signals: make(map[string]*SignalBuilder)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Signal starts (or resumes) the definition of a signal.
func (b *Builder) Signal(name string) *SignalBuilder {
	if sb, ok := b.signals[name]; ok {
		return sb
	}
	sb := &SignalBuilder{builder: b, signal: domain.Signal{Name: name}}
	b.signals[name] = sb
	b.order = append(b.order, name)
	return sb
}

// Build returns the signals in definition order, or every error recorded
// while chaining.
func (b *Builder) Build() ([]domain.Signal, error) {
	var errs []error
	out := make([]domain.Signal, 0, len(b.order))
	for _, name := range b.order {
		sb := b.signals[name]
		if len(sb.errs) > 0 {
			errs = append(errs, fmt.Errorf("signal %s: %w", name, errors.Join(sb.errs...)))
			continue
		}
		out = append(out, sb.signal)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// LoadSignals implements ports.SignalLoader.
func (b *Builder) LoadSignals() ([]domain.Signal, error) {
	return b.Build()
}

// SignalBuilder provides a fluent API for one signal's top-level sequence.
type SignalBuilder struct {
	builder *Builder
	signal  domain.Signal
	last    *domain.Step
	errs    []error
}

// Describe sets the signal description.
func (s *SignalBuilder) Describe(text string) *SignalBuilder {
	s.signal.Description = text
	return s
}

// Do appends an action step.
func (s *SignalBuilder) Do(a *domain.Action) *SignalBuilder {
	if a == nil {
		s.errs = append(s.errs, errors.New("Do: nil action"))
		return s
	}
	step := &domain.Step{Action: a}
	s.signal.Sequence.Items = append(s.signal.Sequence.Items, step)
	s.last = step
	return s
}

// Call appends a step built by the registry.
func (s *SignalBuilder) Call(name string, args map[string]any) *SignalBuilder {
	if s.builder.reg == nil {
		s.errs = append(s.errs, fmt.Errorf("Call %s: builder has no registry", name))
		return s
	}
	a, err := s.builder.reg.Build(name, "", args)
	if err != nil {
		s.errs = append(s.errs, err)
		return s
	}
	return s.Do(a)
}

// On wires the branch taken when the last added action selects output.
// Wiring the same output twice is a build error.
func (s *SignalBuilder) On(output string, items ...domain.Item) *SignalBuilder {
	if s.last == nil {
		s.errs = append(s.errs, fmt.Errorf("On(%q): no preceding action", output))
		return s
	}
	if _, dup := s.last.Paths[output]; dup {
		s.errs = append(s.errs, fmt.Errorf("On(%q): %w", output, ErrDuplicateBranch))
		return s
	}
	if s.last.Paths == nil {
		s.last.Paths = make(map[string]domain.Sequence)
	}
	s.last.Paths[output] = Seq(items...)
	return s
}

// Then appends a nested sequence. Later On calls cannot attach to it.
func (s *SignalBuilder) Then(items ...domain.Item) *SignalBuilder {
	s.signal.Sequence.Items = append(s.signal.Sequence.Items, Seq(items...))
	s.last = nil
	return s
}

// Use inlines the sequence of a signal defined earlier on the same builder.
func (s *SignalBuilder) Use(name string) *SignalBuilder {
	other, ok := s.builder.signals[name]
	if !ok || other == s {
		s.errs = append(s.errs, fmt.Errorf("Use(%q): %w", name, domain.ErrUnknownSignal))
		return s
	}
	items := slices.Clone(other.signal.Sequence.Items)
	return s.Then(items...)
}

// Signal switches to another signal on the same builder.
func (s *SignalBuilder) Signal(name string) *SignalBuilder {
	return s.builder.Signal(name)
}

// Build is a shortcut for the parent Builder's Build.
func (s *SignalBuilder) Build() ([]domain.Signal, error) {
	return s.builder.Build()
}
