package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Type validates a single value.
type Type interface {
	Name() string
	Validate(value any) error
}

type basic struct {
	name  string
	check func(any) bool
}

func (b basic) Name() string { return b.name }

func (b basic) Validate(value any) error {
	if !b.check(value) {
		return fmt.Errorf("expected %s, got %T", b.name, value)
	}
	return nil
}

type list struct {
	elem Type
}

func (l list) Name() string { return "[" + l.elem.Name() + "]" }

func (l list) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Errorf("expected %s, got %T", l.Name(), value)
	}
	for i := range rv.Len() {
		if err := l.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

type custom struct {
	name string
	fn   func(any) error
}

func (c custom) Name() string             { return c.name }
func (c custom) Validate(value any) error { return c.fn(value) }

// String accepts strings.
func String() Type { return basic{"string", isString} }

// Int accepts integers, including whole floats and integral json.Number.
func Int() Type { return basic{"int", isInt} }

// Float accepts any number.
func Float() Type { return basic{"float", isNumber} }

// Bool accepts booleans.
func Bool() Type { return basic{"bool", isBool} }

// Object accepts string-keyed maps.
func Object() Type { return basic{"object", isObject} }

// Any accepts every value except nil.
func Any() Type { return basic{"any", func(v any) bool { return v != nil }} }

// Slice accepts lists whose elements all match elem.
func Slice(elem Type) Type { return list{elem} }

// Custom wraps a validation function under a name.
func Custom(name string, fn func(any) error) Type { return custom{name, fn} }

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func isInt(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return n == float32(math.Trunc(float64(n)))
	case float64:
		return n == math.Trunc(n)
	case json.Number:
		_, err := n.Int64()
		return err == nil
	}
	return false
}

func isNumber(v any) bool {
	switch n := v.(type) {
	case float32, float64:
		return true
	case json.Number:
		_, err := n.Float64()
		return err == nil
	}
	return isInt(v)
}

// ParseType converts a type name into a Type.
func ParseType(name string) (Type, error) {
	name = strings.TrimSpace(name)
	if len(name) > 2 && name[0] == '[' && name[len(name)-1] == ']' {
		elem, err := ParseType(name[1 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}
	switch name {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float", "number":
		return Float(), nil
	case "bool":
		return Bool(), nil
	case "object":
		return Object(), nil
	case "any":
		return Any(), nil
	}
	return nil, fmt.Errorf("unsupported type: %q", name)
}

// ParseTypeMap converts field names mapped to type names into a Schema.
func ParseTypeMap(m map[string]string) (Schema, error) {
	s := make(Schema, len(m))
	for field, name := range m {
		t, err := ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		s[field] = t
	}
	return s, nil
}
