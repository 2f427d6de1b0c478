/*
Package ports defines the driven ports (interfaces) for the pathflow engine.

These interfaces decouple the executor and its providers from external
implementations, allowing runs to sync state with various storage backends and
signal trees to come from different definition sources.

# Key Interfaces

  - SignalLoader: Produces signal trees (e.g., from YAML files or the Go DSL).
  - KeyValueStore: External storage that the storage provider syncs context keys with.
  - RunStore: Persists finished run results for inspection.
  - DistributedLocker: Serialises writes to the same external key across instances.
*/
package ports
