package providers

import (
	"context"

	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/ports"
)

// ProvideFunc is the signature of Provider.Provide.
type ProvideFunc func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) error

type funcProvider struct {
	name string
	fn   ProvideFunc
}

// Func adapts a plain function to ports.Provider.
func Func(name string, fn ProvideFunc) ports.Provider {
	return &funcProvider{name: name, fn: fn}
}

func (f *funcProvider) Name() string { return f.name }

func (f *funcProvider) Provide(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) error {
	return f.fn(ctx, rc, decl, payload)
}

// Static sets a fixed value under key before every action.
func Static(key string, value any) ports.Provider {
	return Func("static:"+key, func(_ context.Context, rc *domain.Context, _ domain.Declaration, _ any) error {
		rc.Set(key, value)
		return nil
	})
}

type chain struct {
	providers []ports.Provider
}

// Chain composes providers into one. They run in order and the first error
// stops the chain. Finish is forwarded to every member that implements
// ports.Finisher.
func Chain(providers ...ports.Provider) ports.Provider {
	return &chain{providers: providers}
}

func (c *chain) Name() string { return "chain" }

func (c *chain) Provide(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) error {
	for _, p := range c.providers {
		if err := p.Provide(ctx, rc, decl, payload); err != nil {
			return &domain.ProviderError{Provider: p.Name(), Action: decl.Name, Err: err}
		}
	}
	return nil
}

func (c *chain) Finish(ctx context.Context, rc *domain.Context, result *domain.Result) error {
	var first error
	for _, p := range c.providers {
		f, ok := p.(ports.Finisher)
		if !ok {
			continue
		}
		if err := f.Finish(ctx, rc, result); err != nil && first == nil {
			first = &domain.ProviderError{Provider: p.Name(), Action: "(end of run)", Err: err}
		}
	}
	return first
}
