// Package schema validates the shape of context values and payloads.
//
// A Schema maps field names to types. Types are parsed from short names
// ("string", "int", "float", "bool", "object", "any") and "[elem]" for
// lists, so schemas can be written inline in signal files:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "email": "string",
//	    "age":   "int",
//	    "tags":  "[string]",
//	})
//	err = schema.Validate(s, data)
//
// Numbers decoded with json.Decoder.UseNumber are accepted wherever a Go
// number would be.
package schema
