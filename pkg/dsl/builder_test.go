package dsl_test

import (
	"context"
	"testing"

	"github.com/aretw0/pathflow/internal/runtime"
	"github.com/aretw0/pathflow/pkg/actions"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/dsl"
	"github.com/aretw0/pathflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.SignalLoader = (*dsl.Builder)(nil)

func mark(name string) *domain.Action {
	return dsl.Action(name, func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		rc.Set(name, true)
		return payload, nil
	})
}

func TestBuilder_LoginFlow(t *testing.T) {
	auth := dsl.Action("auth", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		if payload == "secret" {
			return rc.Paths().Take("success", "token"), nil
		}
		return rc.Paths().Take("failure", nil), nil
	}, "success", "failure")

	b := dsl.New()
	b.Signal("login").
		Describe("Log a user in").
		Do(auth).
		On("success", dsl.Step(mark("store"))).
		On("failure", dsl.Step(mark("warn"))).
		Do(mark("audit"))

	signals, err := b.Build()
	require.NoError(t, err)
	require.Len(t, signals, 1)
	login := signals[0]
	assert.Equal(t, "Log a user in", login.Description)

	_, err = runtime.ValidateSignal(login, true)
	require.NoError(t, err)

	result, err := runtime.NewEngine().Execute(context.Background(), "r", login, nil, "secret")
	require.NoError(t, err)
	assert.Equal(t, "token", result.Payload)
	assert.Equal(t, []string{"store", "audit"}, result.Context.Keys())
}

func TestBuilder_NestedStepsAndUse(t *testing.T) {
	gate := dsl.Action("gate", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		return rc.Paths().Take("open", payload), nil
	}, "open")

	b := dsl.New(dsl.WithRegistry(actions.NewRegistry()))
	b.Signal("common").Call("set", map[string]any{"key": "shared", "value": 1})
	signals, err := b.Signal("main").
		Use("common").
		Then(dsl.Step(gate, dsl.Branch("open", dsl.Step(mark("inside"))))).
		Build()
	require.NoError(t, err)
	require.Len(t, signals, 2)

	result, err := runtime.NewEngine().Execute(context.Background(), "r", signals[1], nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared", "inside"}, result.Context.Keys())
}

func TestBuilder_Errors(t *testing.T) {
	b := dsl.New()
	b.Signal("bad").On("orphan", dsl.Step(mark("x")))
	b.Signal("worse").Do(nil).Call("set", nil).Use("ghost")

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `On("orphan"): no preceding action`)
	assert.Contains(t, err.Error(), "nil action")
	assert.Contains(t, err.Error(), "no registry")
	assert.Contains(t, err.Error(), "unknown signal")

	_, err = b.LoadSignals()
	assert.Error(t, err)
}

func TestBuilder_DuplicateBranchLabel(t *testing.T) {
	pick := dsl.Action("pick", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		return rc.Paths().Take("a", payload), nil
	}, "a")

	b := dsl.New()
	b.Signal("s").Do(pick).On("a", dsl.Step(mark("first"))).On("a", dsl.Step(mark("second")))

	_, err := b.Build()
	require.ErrorIs(t, err, dsl.ErrDuplicateBranch)
	assert.Contains(t, err.Error(), `On("a")`)

	_, err = dsl.NewStep(pick, dsl.Branch("a", dsl.Step(mark("first"))), dsl.Branch("a", dsl.Step(mark("second"))))
	assert.ErrorIs(t, err, dsl.ErrDuplicateBranch)

	assert.Panics(t, func() {
		dsl.Step(pick, dsl.Branch("a"), dsl.Branch("a"))
	})

	step, err := dsl.NewStep(pick, dsl.Branch("a", dsl.Step(mark("first"))))
	require.NoError(t, err)
	assert.Len(t, step.Paths, 1)
}
