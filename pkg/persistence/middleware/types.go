package middleware

import "github.com/aretw0/pathflow/pkg/ports"

// RunMiddleware allows wrapping a RunStore to add behavior.
type RunMiddleware func(ports.RunStore) ports.RunStore

// StoreMiddleware allows wrapping a KeyValueStore to add behavior.
type StoreMiddleware func(ports.KeyValueStore) ports.KeyValueStore

// envelopeKey marks an encrypted payload.
const envelopeKey = "__encrypted__"
