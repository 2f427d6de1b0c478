/*
Package pathflow runs signals: named trees of actions that branch by output
name.

An action is a plain function that may declare named outputs. Before it runs,
a chain of providers prepares the run context, and the last provider binds
one continuation per declared output under the "path" key. The action picks
a branch by returning the Path built by one of those continuations; any other
return value becomes the payload of the next action in the same sequence.
When a branch finishes, execution resumes after the action that chose it.

# Usage

	login := &domain.Action{
		Name:    "login",
		Outputs: []string{"success", "failure"},
		Fn: func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
			if ok := check(payload); !ok {
				return rc.Paths().Take("failure", nil), nil
			}
			return rc.Paths().Take("success", map[string]any{"token": "t1"}), nil
		},
	}

	ctrl := pathflow.New(pathflow.WithProviders(providers.NewLogger(logger)))
	err := ctrl.Register(domain.Signal{
		Name: "login",
		Sequence: dsl.Seq(dsl.Step(login,
			dsl.Branch("success", dsl.Step(storeToken)),
			dsl.Branch("failure", dsl.Step(showError)),
		)),
	})

	result, err := ctrl.Run(ctx, "login", map[string]any{"user": "a"})

# Errors

A failed run returns one of domain.RoutingError (a Path names an output that
is undeclared, unwired or stale), domain.ActionError (the action returned an
error or panicked) or domain.ProviderError. The Result still carries the
context as it stood at the failure; nothing is rolled back and nothing is
retried.

# Concurrency

A Controller may run many signals at once. Each run gets its own context and
executes its actions strictly one after another. Shared external state, such
as a key-value store behind the storage provider, is serialised by that
provider, never by the executor.
*/
package pathflow
