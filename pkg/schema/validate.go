package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Schema maps field names to their expected types. Every field is required.
type Schema map[string]Type

// FieldError is a single field failure.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// Validate checks data against s and joins every failure, in field order.
// An empty schema accepts anything.
func Validate(s Schema, data map[string]any) error {
	var errs []error
	for _, field := range slices.Sorted(maps.Keys(s)) {
		value, ok := data[field]
		if !ok {
			errs = append(errs, &FieldError{Field: field, Reason: "required"})
			continue
		}
		if err := s[field].Validate(value); err != nil {
			errs = append(errs, &FieldError{Field: field, Reason: err.Error()})
		}
	}
	return errors.Join(errs...)
}

// Fields lists the field failures inside err.
func Fields(err error) []*FieldError {
	if err == nil {
		return nil
	}
	var out []*FieldError
	var fe *FieldError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if errors.As(e, &fe) {
				out = append(out, fe)
			}
		}
		return out
	}
	if errors.As(err, &fe) {
		out = append(out, fe)
	}
	return out
}

// MarshalJSON writes the schema as field names mapped to type names.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	raw := make(map[string]string, len(s))
	for field, t := range s {
		if t == nil {
			return nil, fmt.Errorf("field %s: type is nil", field)
		}
		raw[field] = t.Name()
	}
	return json.Marshal(raw)
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if raw == nil {
		*s = nil
		return nil
	}
	parsed, err := ParseTypeMap(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
