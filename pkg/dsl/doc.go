/*
Package dsl provides a Go DSL for programmatically constructing signal trees.

It is the code-first alternative to signal files: actions are plain Go values
and branches are attached with On right after the action that selects them.

Example usage:

	b := dsl.New()

	b.Signal("login").
		Do(authenticate).
		On("success", dsl.Step(storeToken)).
		On("failure", dsl.Step(showError)).
		Do(audit)

	signals, err := b.Build()
	// ... pass signals (or b itself, as a ports.SignalLoader) to pathflow.New(...)
*/
package dsl
