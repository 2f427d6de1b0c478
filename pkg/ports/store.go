package ports

import (
	"context"

	"github.com/aretw0/pathflow/pkg/domain"
)

// KeyValueStore is the external storage a storage provider syncs context keys with.
// Values are opaque JSON documents.
type KeyValueStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists the stored keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// RunStore persists the results of finished runs for later inspection.
type RunStore interface {
	// Save persists the result under its RunID.
	Save(ctx context.Context, result *domain.Result) error

	// Load retrieves a result by run ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.Result, error)

	// List returns the IDs of stored runs.
	List(ctx context.Context) ([]string, error)

	// Delete removes a stored result.
	Delete(ctx context.Context, runID string) error
}
