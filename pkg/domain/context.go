package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// KeyPath is the reserved context key holding the output namespace of the
// action currently executing.
const KeyPath = "path"

// Context is the mutable state threaded through every action of one run.
// Keys keep their insertion order; overwriting a key keeps its position.
//
// Transient keys hold live collaborators such as clients and loggers. Actions
// read them like any other key, but Snapshot, Map, MarshalJSON and Diff leave
// them out, so they never reach a Result, a RunStore or the wire. KeyPath is
// always transient.
//
// A Context belongs to exactly one run and is not safe for concurrent use.
type Context struct {
	keys      []string
	values    map[string]any
	transient map[string]struct{}
}

// NewContext creates an empty context, optionally seeded from a plain map.
// Seed keys are inserted in sorted order so the result is deterministic.
func NewContext(seed map[string]any) *Context {
	c := &Context{values: make(map[string]any, len(seed))}
	for _, k := range sortedKeys(seed) {
		c.Set(k, seed[k])
	}
	return c
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key is present.
func (c *Context) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Set stores value under key.
func (c *Context) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// SetTransient stores value under key and marks the key transient.
// The mark stays until the key is deleted.
func (c *Context) SetTransient(key string, value any) {
	c.Set(key, value)
	if c.transient == nil {
		c.transient = make(map[string]struct{})
	}
	c.transient[key] = struct{}{}
}

// IsTransient reports whether key is excluded from snapshots.
func (c *Context) IsTransient(key string) bool {
	if key == KeyPath {
		return true
	}
	if c == nil {
		return false
	}
	_, ok := c.transient[key]
	return ok
}

// Delete removes key. Deleting a missing key is a no-op.
func (c *Context) Delete(key string) {
	if _, exists := c.values[key]; !exists {
		return
	}
	delete(c.values, key)
	delete(c.transient, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (c *Context) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of keys.
func (c *Context) Len() int {
	return len(c.keys)
}

// Range calls fn for each key in order until fn returns false.
func (c *Context) Range(fn func(key string, value any) bool) {
	for _, k := range c.keys {
		if !fn(k, c.values[k]) {
			return
		}
	}
}

// Paths returns the output namespace bound for the current action.
// It is nil when the action declares no outputs.
func (c *Context) Paths() *Paths {
	v, ok := c.values[KeyPath]
	if !ok {
		return nil
	}
	p, _ := v.(*Paths)
	return p
}

// Snapshot returns an ordered copy of the context without transient keys.
// Values are copied shallowly.
func (c *Context) Snapshot() *Context {
	out := &Context{
		keys:   make([]string, 0, len(c.keys)),
		values: make(map[string]any, len(c.values)),
	}
	for _, k := range c.keys {
		if c.IsTransient(k) {
			continue
		}
		out.keys = append(out.keys, k)
		out.values[k] = c.values[k]
	}
	return out
}

// Map returns a plain map copy of the context without transient keys.
func (c *Context) Map() map[string]any {
	out := make(map[string]any, len(c.values))
	for _, k := range c.keys {
		if c.IsTransient(k) {
			continue
		}
		out[k] = c.values[k]
	}
	return out
}

// MarshalJSON encodes the context as a JSON object preserving key order.
// Transient keys are skipped.
func (c *Context) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, k := range c.keys {
		if c.IsTransient(k) {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(c.values[k])
		if err != nil {
			return nil, fmt.Errorf("context key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the document's key order.
func (c *Context) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = Context{values: make(map[string]any)}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("context: expected JSON object")
	}

	next := Context{values: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("context: expected string key, got %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("context key %q: %w", key, err)
		}
		next.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = next
	return nil
}
