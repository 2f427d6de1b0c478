package ports

import "github.com/aretw0/pathflow/pkg/domain"

// SignalLoader produces signal trees from an external definition source
// (YAML files, DSL builders, ...).
type SignalLoader interface {
	// LoadSignals returns every signal the source defines.
	LoadSignals() ([]domain.Signal, error)
}
