package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/pathflow"
	"github.com/aretw0/pathflow/internal/logging"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/dsl"
	"github.com/aretw0/pathflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func checkout() domain.Signal {
	pay := dsl.Action("pay", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		if payload == "broke" {
			return rc.Paths().Take("declined", nil), nil
		}
		return rc.Paths().Take("paid", payload), nil
	}, "paid", "declined")
	ship := dsl.Action("ship", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		return payload, nil
	})
	explode := dsl.Action("explode", func(ctx context.Context, rc *domain.Context, decl domain.Declaration, payload any) (any, error) {
		return nil, errors.New("card reader on fire")
	})
	return domain.Signal{Name: "checkout", Sequence: dsl.Seq(dsl.Step(pay,
		dsl.Branch("paid", dsl.Step(ship)),
		dsl.Branch("declined", dsl.Step(explode)),
	))}
}

func newController(t *testing.T, hooks domain.LifecycleHooks) *pathflow.Controller {
	t.Helper()
	ctrl := pathflow.New(pathflow.WithLifecycleHooks(hooks))
	require.NoError(t, ctrl.Register(checkout()))
	return ctrl
}

func TestCombine_FansOutInOrder(t *testing.T) {
	var got []string
	a := domain.LifecycleHooks{OnRunStart: func(context.Context, *domain.RunEvent) { got = append(got, "a") }}
	b := domain.LifecycleHooks{
		OnRunStart: func(context.Context, *domain.RunEvent) { got = append(got, "b") },
		OnBranch:   func(context.Context, *domain.BranchEvent) { got = append(got, "b-branch") },
	}

	_, err := newController(t, observability.Combine(a, b)).Run(context.Background(), "checkout", "cash")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "b-branch"}, got)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	ctrl := newController(t, m.Hooks())
	ctx := context.Background()
	_, err = ctrl.Run(ctx, "checkout", "cash")
	require.NoError(t, err)
	_, err = ctrl.Run(ctx, "checkout", "broke")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("checkout", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("checkout", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Actions.WithLabelValues("checkout", "pay", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Actions.WithLabelValues("checkout", "explode", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Branches.WithLabelValues("checkout", "pay", "declined")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveRuns))

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err, "registering twice fails")
}

func TestTracer(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := observability.NewTracer(tp.Tracer("pathflow-test"))
	ctrl := newController(t, tracer.Hooks())

	_, err := ctrl.Run(context.Background(), "checkout", "broke")
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	byName := make(map[string]tracetest.SpanStub)
	for _, s := range spans {
		byName[s.Name] = s
	}

	run := byName["signal checkout"]
	assert.Equal(t, codes.Error, run.Status.Code)
	require.Len(t, run.Events, 1)
	assert.Equal(t, "branch", run.Events[0].Name)

	pay := byName["action pay"]
	assert.Equal(t, run.SpanContext.SpanID(), pay.Parent.SpanID())
	assert.Equal(t, run.SpanContext.TraceID(), pay.SpanContext.TraceID())

	assert.Equal(t, codes.Error, byName["action explode"].Status.Code)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelDebug)

	_, err := newController(t, observability.LogHooks(logger)).Run(context.Background(), "checkout", "broke")
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "msg=run_start")
	assert.Contains(t, out, "msg=branch")
	assert.Contains(t, out, "output=declined")
	assert.Contains(t, out, "level=WARN msg=run_end")
	assert.Contains(t, out, "err=")
}
