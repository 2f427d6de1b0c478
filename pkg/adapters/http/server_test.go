package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/pathflow"
	"github.com/aretw0/pathflow/internal/logging"
	"github.com/aretw0/pathflow/pkg/adapters/memory"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/dsl"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController(t *testing.T) *pathflow.Controller {
	t.Helper()
	ctrl := pathflow.New(
		pathflow.WithLogger(logging.NewNop()),
		pathflow.WithRunStore(memory.NewRunStore()),
	)

	greet := dsl.Action("greet", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		rc.Set("greeted", payload)
		return payload, nil
	})
	check := dsl.Action("check", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		if payload == "admin" {
			return rc.Paths().Take("allowed", payload), nil
		}
		return rc.Paths().Take("denied", payload), nil
	}, "allowed", "denied")
	boom := dsl.Action("boom", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		return nil, assert.AnError
	})

	require.NoError(t, ctrl.Register(
		domain.Signal{Name: "hello", Description: "Says hello", Sequence: dsl.Seq(dsl.Step(greet))},
		domain.Signal{Name: "gate", Sequence: dsl.Seq(dsl.Step(check, dsl.Branch("allowed", dsl.Step(greet))))},
		domain.Signal{Name: "broken", Sequence: dsl.Seq(dsl.Step(boom))},
	))
	return ctrl
}

func newHandler(t *testing.T, opts ...Option) (*pathflow.Controller, http.Handler) {
	ctrl := newController(t)
	handler, stop := NewHandler(ctrl, append([]Option{WithLogger(logging.NewNop())}, opts...)...)
	t.Cleanup(stop)
	return ctrl, handler
}

func do(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRunSignal(t *testing.T) {
	_, handler := newHandler(t)

	tests := []struct {
		name       string
		target     string
		body       string
		wantCode   int
		wantStatus domain.RunStatus
	}{
		{"Completed", "/signals/hello", `{"payload":"ada","run_id":"r1"}`, http.StatusOK, domain.StatusCompleted},
		{"Empty Body", "/signals/hello", ``, http.StatusOK, domain.StatusCompleted},
		{"Branch Taken", "/signals/gate", `{"payload":"admin"}`, http.StatusOK, domain.StatusCompleted},
		{"Action Fails", "/signals/broken", `{}`, http.StatusUnprocessableEntity, domain.StatusFailed},
		{"Unknown Signal", "/signals/nope", `{}`, http.StatusNotFound, ""},
		{"Bad Body", "/signals/hello", `{`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(handler, http.MethodPost, tt.target, tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantStatus == "" {
				return
			}
			var result domain.Result
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
			assert.Equal(t, tt.wantStatus, result.Status)
		})
	}
}

func TestRunSignal_ContextSeedAndRunLookup(t *testing.T) {
	_, handler := newHandler(t)

	w := do(handler, http.MethodPost, "/signals/hello", `{"run_id":"run-7","payload":"bob","context":{"tenant":"acme"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(handler, http.MethodGet, "/runs/run-7", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stored domain.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	tenant, _ := stored.Context.Get("tenant")
	greeted, _ := stored.Context.Get("greeted")
	assert.Equal(t, "acme", tenant)
	assert.Equal(t, "bob", greeted)

	w = do(handler, http.MethodGet, "/runs", "")
	assert.JSONEq(t, `["run-7"]`, w.Body.String())

	w = do(handler, http.MethodGet, "/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunSignal_BodySizeLimit(t *testing.T) {
	ctrl, handler := newHandler(t, WithMaxBodySize(64))

	big := `{"payload":"` + strings.Repeat("x", 128) + `"}`
	w := do(handler, http.MethodPost, "/signals/hello", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	ids, err := ctrl.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids, "rejected bodies never start a run")

	w = do(handler, http.MethodPost, "/signals/hello", `{"payload":"ok"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSignalsAndGraph(t *testing.T) {
	_, handler := newHandler(t)

	w := do(handler, http.MethodGet, "/signals", "")
	assert.JSONEq(t, `["broken","gate","hello"]`, w.Body.String())

	w = do(handler, http.MethodGet, "/signals/gate", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp SignalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "gate", resp.Name)
	assert.Equal(t, []pathflow.Warning{{Action: "check", Output: "denied"}}, resp.Warnings)

	w = do(handler, http.MethodGet, "/signals/gate/graph", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD"))
	assert.NotContains(t, w.Body.String(), "visited")

	do(handler, http.MethodPost, "/signals/gate", `{"payload":"admin","run_id":"g1"}`)
	w = do(handler, http.MethodGet, "/signals/gate/graph?run_id=g1", "")
	assert.Contains(t, w.Body.String(), "class a0_check visited;")
	assert.Contains(t, w.Body.String(), "class a1_greet visited;")

	assert.Equal(t, http.StatusNotFound, do(handler, http.MethodGet, "/signals/nope/graph", "").Code)
}

func TestHealthAndCORS(t *testing.T) {
	_, handler := newHandler(t)

	w := do(handler, http.MethodGet, "/health", "")
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(handler, http.MethodOptions, "/signals/hello", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(handler, http.MethodGet, "/info", "")
	assert.Contains(t, w.Body.String(), pathflow.Version)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pathflow_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	_, handler := newHandler(t, WithMetrics(reg))
	w := do(handler, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pathflow_test_total 1")

	_, plain := newHandler(t)
	assert.Equal(t, http.StatusNotFound, do(plain, http.MethodGet, "/metrics", "").Code)
}

func TestSubscribeEvents(t *testing.T) {
	ctrl, handler := newHandler(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wSub := httptest.NewRecorder()
	reqSub := httptest.NewRequest("GET", "/events?signal=hello", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(wSub, reqSub)
	}()

	time.Sleep(100 * time.Millisecond) // Wait for subscription to register

	_, err := ctrl.Run(context.Background(), "gate", "admin")
	require.NoError(t, err)
	_, err = ctrl.Run(context.Background(), "hello", "ada", pathflow.WithRunID("sse-1"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	output := wSub.Body.String()
	assert.Contains(t, output, "event: ping")
	assert.Contains(t, output, `"run_id":"sse-1"`)
	assert.Contains(t, output, `"greeted":"ada"`)
	assert.NotContains(t, output, `"signal":"gate"`)
}

func TestStreamManager_StatusFilterAndFanOut(t *testing.T) {
	sm := NewStreamManager()
	all, cancelAll := sm.Subscribe("")
	one, cancelOne := sm.Subscribe("hello")

	sm.Broadcast("hello", `{"status":"failed"}`)
	sm.Broadcast("other", `{"status":"completed"}`)

	assert.Equal(t, `{"status":"failed"}`, <-all)
	assert.Equal(t, `{"status":"completed"}`, <-all)
	assert.Equal(t, `{"status":"failed"}`, <-one)
	assert.Empty(t, one)

	cancelAll()
	cancelOne()
	_, open := <-one
	assert.False(t, open)

	assert.True(t, matchesStatus(`{"status":"failed"}`, []string{"completed", "failed"}))
	assert.False(t, matchesStatus(`{"status":"completed"}`, []string{"failed"}))
}
