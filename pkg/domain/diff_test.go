package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func ctxOf(pairs ...any) *Context {
	c := NewContext(nil)
	for i := 0; i+1 < len(pairs); i += 2 {
		c.Set(pairs[i].(string), pairs[i+1])
	}
	return c
}

func TestDiffContext(t *testing.T) {
	tests := []struct {
		name string
		old  *Context
		new  *Context
		want map[string]any
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new:  ctxOf("a", 1),
			want: map[string]any{"a": 1},
		},
		{
			name: "No Changes",
			old:  ctxOf("a", 1),
			new:  ctxOf("a", 1),
			want: nil,
		},
		{
			name: "Context Added & Modified",
			old:  ctxOf("a", 1, "b", "old"),
			new:  ctxOf("a", 1, "b", "new", "c", true),
			want: map[string]any{"b": "new", "c": true},
		},
		{
			name: "Context Deletion",
			old:  ctxOf("a", 1, "b", 2),
			new:  ctxOf("a", 1),
			want: map[string]any{"b": nil},
		},
		{
			name: "Path Namespace Ignored",
			old:  ctxOf("a", 1),
			new:  ctxOf("a", 1, KeyPath, NewPaths(1, Declaration{Name: "x", Outputs: []string{"ok"}})),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiffContext(tt.old, tt.new)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DiffContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	t.Run("Nil When Unchanged", func(t *testing.T) {
		if d := Diff("run-1", ctxOf("a", 1), ctxOf("a", 1)); d != nil {
			t.Errorf("Diff() = %v, want nil", d)
		}
	})

	t.Run("Deletions as Null", func(t *testing.T) {
		d := Diff("run-1", ctxOf("a", 1, "b", 2), ctxOf("a", 1))
		if d == nil {
			t.Fatal("Expected diff, got nil")
		}
		if d.RunID != "run-1" {
			t.Errorf("RunID = %q, want run-1", d.RunID)
		}
		bytes, _ := json.Marshal(d)
		if !strings.Contains(string(bytes), `"b":null`) {
			t.Errorf("JSON should contain 'b':null for deletion, got: %s", string(bytes))
		}
	})
}
