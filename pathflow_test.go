package pathflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/pathflow"
	"github.com/aretw0/pathflow/pkg/adapters/memory"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/dsl"
	"github.com/aretw0/pathflow/pkg/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginSignal() domain.Signal {
	login := dsl.Action("login", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		p, _ := payload.(map[string]any)
		if p["user"] == "a" {
			return rc.Paths().Take("success", map[string]any{"token": "t1"}), nil
		}
		return rc.Paths().Take("failure", nil), nil
	}, "success", "failure")

	store := dsl.Action("store", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		rc.Set("token", payload.(map[string]any)["token"])
		return payload, nil
	})
	warn := dsl.Action("warn", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		rc.Set("warned", true)
		return nil, nil
	})

	return domain.Signal{Name: "login", Sequence: dsl.Seq(dsl.Step(login,
		dsl.Branch("success", dsl.Step(store)),
		dsl.Branch("failure", dsl.Step(warn)),
	))}
}

func TestController_RunAndPersist(t *testing.T) {
	runs := memory.NewRunStore()
	var ids int
	ctrl := pathflow.New(
		pathflow.WithRunStore(runs),
		pathflow.WithIDGenerator(func() string { ids++; return fmt.Sprintf("run-%d", ids) }),
	)
	require.NoError(t, ctrl.Register(loginSignal()))
	assert.Equal(t, []string{"login"}, ctrl.Signals())

	var heard []string
	remove := ctrl.OnResult(func(ctx context.Context, r *domain.Result) { heard = append(heard, r.RunID) })

	ctx := context.Background()
	result, err := ctrl.Run(ctx, "login", map[string]any{"user": "a"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, domain.StatusCompleted, result.Status)
	assert.Equal(t, map[string]any{"token": "t1"}, result.Payload)
	assert.False(t, result.Context.Has("warned"), "the failure branch must not execute")

	loaded, err := ctrl.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, result.Trace, loaded.Trace)

	remove()
	_, err = ctrl.Run(ctx, "login", nil, pathflow.WithRunID("custom"))
	require.NoError(t, err)

	ids2, err := ctrl.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "custom"}, ids2)
	assert.Equal(t, []string{"run-1"}, heard)
}

func TestController_UnknownSignal(t *testing.T) {
	ctrl := pathflow.New()
	result, err := ctrl.Run(context.Background(), "nope", nil)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrUnknownSignal)

	_, err = ctrl.LoadRun(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func checkoutSignal() domain.Signal {
	checkout := dsl.Action("checkout", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		return rc.Paths().Take("paid", payload), nil
	}, "paid")
	return domain.Signal{Name: "checkout", Sequence: dsl.Seq(dsl.Step(checkout))}
}

func TestController_UnwiredOutput(t *testing.T) {
	t.Run("Warns And Fails At Runtime", func(t *testing.T) {
		ctrl := pathflow.New()
		require.NoError(t, ctrl.Register(checkoutSignal()))
		assert.Equal(t, []pathflow.Warning{{Action: "checkout", Output: "paid"}}, ctrl.Warnings("checkout"))

		result, err := ctrl.Run(context.Background(), "checkout", nil)
		var re *domain.RoutingError
		require.ErrorAs(t, err, &re)
		assert.ErrorIs(t, err, domain.ErrUnwiredOutput)
		assert.Equal(t, domain.StatusFailed, result.Status)
	})

	t.Run("Strict Wiring Rejects", func(t *testing.T) {
		ctrl := pathflow.New(pathflow.WithStrictWiring(true))
		err := ctrl.Register(checkoutSignal(), loginSignal())
		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Empty(t, ctrl.Signals(), "nothing is registered when any signal is invalid")
	})
}

func TestController_OutputPolicy(t *testing.T) {
	plain := dsl.Action("plain", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		return "value", nil
	}, "a")
	sig := domain.Signal{Name: "p", Sequence: dsl.Seq(dsl.Step(plain, dsl.Branch("a")))}

	linear := pathflow.New()
	require.NoError(t, linear.Register(sig))
	result, err := linear.Run(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "value", result.Payload)

	strict := pathflow.New(pathflow.WithOutputPolicy(pathflow.OutputPolicyStrict))
	require.NoError(t, strict.Register(sig))
	_, err = strict.Run(context.Background(), "p", nil)
	assert.ErrorIs(t, err, domain.ErrMissingOutput)
}

func TestController_SeedIsolation(t *testing.T) {
	counter := dsl.Action("count", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		n, _ := rc.Get("count")
		rc.Set("count", n.(int)+1)
		if payload == "boom" {
			return nil, errors.New("boom")
		}
		v, _ := rc.Get("count")
		return v, nil
	})

	ctrl := pathflow.New(pathflow.WithInitialContext(map[string]any{"count": 0, "env": "test"}))
	require.NoError(t, ctrl.Register(domain.Signal{Name: "c", Sequence: dsl.Seq(dsl.Step(counter))}))

	var wg sync.WaitGroup
	results := make([]*domain.Result, 20)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := ctrl.Run(context.Background(), "c", nil)
			assert.NoError(t, err)
			results[i] = r
		}()
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, 1, r.Payload, "runs never share a context")
	}

	result, err := ctrl.Run(context.Background(), "c", "boom", pathflow.WithContext(map[string]any{"count": 10}))
	require.Error(t, err)
	count, _ := result.Context.Get("count")
	assert.Equal(t, 11, count, "failed runs keep their partial mutations")
	env, _ := result.Context.Get("env")
	assert.Equal(t, "test", env)
}

func TestController_Load(t *testing.T) {
	b := dsl.New()
	b.Signal("a").Do(dsl.Action("noop", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		return payload, nil
	}))
	ctrl := pathflow.New()
	require.NoError(t, ctrl.Load(b))

	sig, ok := ctrl.Inspect("a")
	require.True(t, ok)
	assert.Equal(t, 1, sig.Sequence.Len())
}

func TestController_ProviderCollaboratorsStayOutOfResults(t *testing.T) {
	runs := memory.NewRunStore()
	ctrl := pathflow.New(
		pathflow.WithRunStore(runs),
		pathflow.WithProviders(
			providers.NewHTTP("https://api", providers.WithHeader("Authorization", "Bearer SECRET")),
			providers.NewLogger(nil),
		),
	)
	noop := dsl.Action("noop", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		client, ok := providers.HTTPFrom(rc)
		require.True(t, ok, "actions still see the client")
		assert.Equal(t, "Bearer SECRET", client.Headers["Authorization"])
		rc.Set("seen", true)
		return payload, nil
	})
	require.NoError(t, ctrl.Register(domain.Signal{Name: "call", Sequence: dsl.Seq(dsl.Step(noop))}))

	var diff *domain.ContextDiff
	ctrl.OnResult(func(ctx context.Context, r *domain.Result) { diff = domain.Diff(r.RunID, nil, r.Context) })

	result, err := ctrl.Run(context.Background(), "call", nil, pathflow.WithRunID("r1"))
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "SECRET")
	assert.Equal(t, []string{"seen"}, result.Context.Keys())

	stored, err := ctrl.LoadRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.False(t, stored.Context.Has(providers.KeyHTTP))
	assert.False(t, stored.Context.Has(providers.KeyLogger))

	require.NotNil(t, diff)
	assert.Equal(t, map[string]any{"seen": true}, diff.Changed)
}

func TestController_RejectsRunIDInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	wait := dsl.Action("wait", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		if payload == "block" {
			close(started)
			<-release
		}
		return payload, nil
	})
	ctrl := pathflow.New()
	require.NoError(t, ctrl.Register(domain.Signal{Name: "w", Sequence: dsl.Seq(dsl.Step(wait))}))

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Run(context.Background(), "w", "block", pathflow.WithRunID("dup"))
		done <- err
	}()
	<-started

	result, err := ctrl.Run(context.Background(), "w", "again", pathflow.WithRunID("dup"))
	assert.ErrorIs(t, err, domain.ErrRunInFlight)
	assert.Nil(t, result)

	_, err = ctrl.Run(context.Background(), "w", "other", pathflow.WithRunID("other"))
	assert.NoError(t, err, "distinct IDs run concurrently")

	close(release)
	require.NoError(t, <-done)

	_, err = ctrl.Run(context.Background(), "w", "again", pathflow.WithRunID("dup"))
	assert.NoError(t, err, "the ID is free once the first run finished")
}
