// Package observability turns executor lifecycle events into logs, metrics
// and traces.
//
// Everything here is a domain.LifecycleHooks value; use Combine to attach
// several at once:
//
//	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
//	hooks := observability.Combine(
//		observability.LogHooks(logger),
//		metrics.Hooks(),
//		observability.NewTracer(otel.Tracer("pathflow")).Hooks(),
//	)
//	ctrl := pathflow.New(pathflow.WithLifecycleHooks(hooks))
package observability
