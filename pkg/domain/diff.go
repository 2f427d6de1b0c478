package domain

import (
	"reflect"
	"slices"
)

// ContextDiff represents the changes between two context snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type ContextDiff struct {
	// RunID is always present to identify the target.
	RunID string `json:"run_id"`

	// Changed contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Changed map[string]any `json:"changed,omitempty"`
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *ContextDiff) IsEmpty() bool {
	return d == nil || len(d.Changed) == 0
}

// Diff calculates the difference between two contexts of the same run.
// If old is nil, every key of next is reported. Returns nil when nothing changed.
func Diff(runID string, old, next *Context) *ContextDiff {
	if next == nil {
		return nil
	}
	changed := DiffContext(old, next)
	if len(changed) == 0 {
		return nil
	}
	return &ContextDiff{RunID: runID, Changed: changed}
}

// DiffContext returns added or modified keys with their new value and deleted
// keys with a nil value. Transient keys are ignored.
func DiffContext(old, next *Context) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		next.Range(func(k string, v any) bool {
			if !next.IsTransient(k) {
				delta[k] = v
			}
			return true
		})
		return nilIfEmpty(delta)
	}

	next.Range(func(k string, newVal any) bool {
		if next.IsTransient(k) {
			return true
		}
		oldVal, exists := old.Get(k)
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
		return true
	})

	old.Range(func(k string, _ any) bool {
		if !old.IsTransient(k) && !next.Has(k) {
			delta[k] = nil
		}
		return true
	})

	return nilIfEmpty(delta)
}

func nilIfEmpty(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
