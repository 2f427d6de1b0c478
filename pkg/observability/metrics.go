package observability

import (
	"context"

	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records run and action statistics in Prometheus collectors.
type Metrics struct {
	Runs           *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	ActiveRuns     prometheus.Gauge
	Actions        *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	Branches       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pathflow_runs_total",
				Help: "Total number of finished signal runs",
			},
			[]string{"signal", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pathflow_run_duration_seconds",
				Help:    "Duration of signal runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"signal"},
		),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pathflow_active_runs",
			Help: "Number of signal runs in progress",
		}),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pathflow_actions_total",
				Help: "Total number of executed actions",
			},
			[]string{"signal", "action", "result"},
		),
		ActionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pathflow_action_duration_seconds",
				Help:    "Duration of action executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		Branches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pathflow_branches_total",
				Help: "Total number of selected branches",
			},
			[]string{"signal", "action", "output"},
		),
	}

	for _, c := range []prometheus.Collector{m.Runs, m.RunDuration, m.ActiveRuns, m.Actions, m.ActionDuration, m.Branches} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			m.ActiveRuns.Inc()
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			m.ActiveRuns.Dec()
			m.Runs.WithLabelValues(e.Signal, string(e.Status)).Inc()
			m.RunDuration.WithLabelValues(e.Signal).Observe(e.Duration.Seconds())
		},
		OnActionEnd: func(ctx context.Context, e *domain.ActionEvent) {
			result := "ok"
			if e.IsError {
				result = "error"
			}
			m.Actions.WithLabelValues(e.Signal, e.Action, result).Inc()
			m.ActionDuration.WithLabelValues(e.Action).Observe(e.Duration.Seconds())
		},
		OnBranch: func(ctx context.Context, e *domain.BranchEvent) {
			m.Branches.WithLabelValues(e.Signal, e.Action, e.Output).Inc()
		},
	}
}
