package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/pathflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes(t *testing.T) {
	tests := []struct {
		typ    string
		accept []any
		reject []any
	}{
		{"string", []any{"", "x"}, []any{1, nil, true}},
		{"int", []any{1, int64(2), 3.0, json.Number("4")}, []any{1.5, json.Number("1.5"), "1", nil}},
		{"float", []any{1.5, 2, json.Number("2.5")}, []any{"2.5", json.Number("x"), nil}},
		{"bool", []any{true, false}, []any{"true", 0}},
		{"object", []any{map[string]any{}}, []any{[]any{}, "x"}},
		{"any", []any{1, "x", []any{}}, []any{nil}},
		{"[string]", []any{[]any{"a", "b"}, []string{}}, []any{[]any{"a", 1}, "a", nil}},
		{"[[int]]", []any{[]any{[]any{1}}}, []any{[]any{[]any{"x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			typ, err := schema.ParseType(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, typ.Name())
			for _, v := range tt.accept {
				assert.NoError(t, typ.Validate(v), "%#v", v)
			}
			for _, v := range tt.reject {
				assert.Error(t, typ.Validate(v), "%#v", v)
			}
		})
	}

	_, err := schema.ParseType("date")
	assert.ErrorContains(t, err, "unsupported type")
	_, err = schema.ParseType("[date]")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	s, err := schema.ParseTypeMap(map[string]string{"email": "string", "age": "int", "tags": "[string]"})
	require.NoError(t, err)

	assert.NoError(t, schema.Validate(s, map[string]any{"email": "a@b.c", "age": json.Number("30"), "tags": []any{"x"}}))
	assert.NoError(t, schema.Validate(nil, nil))

	err = schema.Validate(s, map[string]any{"age": "old", "tags": []any{}})
	require.Error(t, err)
	fields := schema.Fields(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "age", fields[0].Field)
	assert.Contains(t, fields[0].Reason, "expected int")
	assert.Equal(t, "email", fields[1].Field)
	assert.Equal(t, "required", fields[1].Reason)

	assert.Nil(t, schema.Fields(nil))

	custom := schema.Schema{"port": schema.Custom("port", func(v any) error {
		if n, ok := v.(int); ok && n > 0 && n < 65536 {
			return nil
		}
		return assert.AnError
	})}
	assert.NoError(t, schema.Validate(custom, map[string]any{"port": 8080}))
	assert.Len(t, schema.Fields(schema.Validate(custom, map[string]any{"port": 0})), 1)

	_, err = schema.ParseTypeMap(map[string]string{"x": "uuid"})
	assert.ErrorContains(t, err, "field x")
}

func TestSchemaJSON(t *testing.T) {
	var s schema.Schema
	require.NoError(t, json.Unmarshal([]byte(`{"id":"int","names":"[string]"}`), &s))
	assert.Equal(t, "[string]", s["names"].Name())

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"int","names":"[string]"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"id":"nope"}`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{"id":1}`), &s))
}
