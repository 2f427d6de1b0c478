// Package actions provides the builtin actions available to signal files.
//
// Every builtin is a registry.Factory; arguments are decoded with
// mapstructure, so unknown keys are rejected and scalar types are coerced
// where YAML is loose (e.g. "3" for an int).
package actions
