/*
Package storage serialises access to external key-value storage shared by
concurrent signal runs.

The executor never locks anything: two runs writing the same storage key must
be ordered by whoever owns that key. Manager provides that ordering with a
per-key in-process mutex and, optionally, a ports.DistributedLocker for
deployments with several replicas.
*/
package storage
