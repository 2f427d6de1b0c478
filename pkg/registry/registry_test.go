package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
	return payload, nil
}

func TestRegistry_Build(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("greet", func(args map[string]any) (*domain.Action, error) {
		if args["who"] == nil {
			return nil, errors.New("who is required")
		}
		return &domain.Action{Outputs: []string{"ok"}, Fn: noop}, nil
	})

	a, err := r.Build("greet", "", map[string]any{"who": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "greet", a.Name, "defaults to the registered name")
	assert.Equal(t, []string{"ok"}, a.Outputs)

	a, err = r.Build("greet", "greet_admin", map[string]any{"who": "root"})
	require.NoError(t, err)
	assert.Equal(t, "greet_admin", a.Name)

	_, err = r.Build("greet", "", nil)
	assert.ErrorContains(t, err, "who is required")

	_, err = r.Build("missing", "", nil)
	assert.ErrorIs(t, err, registry.ErrUnknownAction)
}

func TestRegistry_RegisterActionCopies(t *testing.T) {
	r := registry.NewRegistry()
	r.RegisterAction(&domain.Action{Name: "login", Outputs: []string{"success", "failure"}, Fn: noop})

	a1, err := r.Build("login", "", nil)
	require.NoError(t, err)
	a1.Outputs[0] = "mutated"

	a2, err := r.Build("login", "login_again", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"success", "failure"}, a2.Outputs)
	assert.Equal(t, "login_again", a2.Name)

	assert.True(t, r.Has("login"))
	assert.Equal(t, []string{"login"}, r.Names())
}
