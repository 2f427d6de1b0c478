// Package providers contains the stock context providers.
//
// A provider prepares the run context before every action. Storage syncs
// selected keys with a key-value store, HTTP attaches a JSON client and
// Logger attaches a run-scoped logger. The output namespace under "path" is
// never built here; the executor always binds it after every provider has run.
package providers
