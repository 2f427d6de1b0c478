package runtime

import (
	"context"
	"sync/atomic"

	"github.com/aretw0/pathflow/pkg/domain"
)

// PathProvider is the output continuation factory.
// Before each action it rebuilds the reserved "path" namespace with one
// continuation per declared output. Every call stamps a fresh owner token so
// bindings captured by one action are rejected when returned from another.
type PathProvider struct{}

// ownerSeq is process-wide so tokens never repeat across engines.
var ownerSeq atomic.Uint64

// NewPathProvider creates the factory. One instance is shared by all runs of an engine.
func NewPathProvider() *PathProvider {
	return &PathProvider{}
}

// Name implements ports.Provider.
func (p *PathProvider) Name() string { return "path" }

// Provide implements ports.Provider.
func (p *PathProvider) Provide(_ context.Context, rc *domain.Context, decl domain.Declaration, _ any) error {
	p.Bind(rc, decl)
	return nil
}

// Bind replaces the namespace for decl and returns the owner token, or 0
// when the action declares no outputs.
func (p *PathProvider) Bind(rc *domain.Context, decl domain.Declaration) uint64 {
	if !decl.HasOutputs() {
		rc.Delete(domain.KeyPath)
		return 0
	}
	owner := ownerSeq.Add(1)
	rc.Set(domain.KeyPath, domain.NewPaths(owner, decl))
	return owner
}

// Unbind removes the namespace once the action has returned.
func (p *PathProvider) Unbind(rc *domain.Context) {
	rc.Delete(domain.KeyPath)
}
