package ports

import (
	"context"

	"github.com/aretw0/pathflow/pkg/domain"
)

// Provider prepares the run context before each action executes.
// Providers run in order; a returned error aborts the run as a ProviderError.
type Provider interface {
	// Name identifies the provider in errors and logs.
	Name() string

	// Provide augments rc for the action described by decl, which is about to
	// receive payload.
	Provide(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) error
}

// Finisher is implemented by providers that need a last look at the context
// once the run has completed or failed (e.g., to flush pending writes).
type Finisher interface {
	Finish(ctx context.Context, rc *domain.Context, result *domain.Result) error
}
