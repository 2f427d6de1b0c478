package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/pathflow"
	"github.com/aretw0/pathflow/internal/adapters"
	"github.com/aretw0/pathflow/internal/config"
	"github.com/aretw0/pathflow/pkg/actions"
	"github.com/aretw0/pathflow/pkg/adapters/memory"
	"github.com/aretw0/pathflow/pkg/adapters/process"
	"github.com/aretw0/pathflow/pkg/adapters/redis"
	"github.com/aretw0/pathflow/pkg/adapters/yaml"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/observability"
	"github.com/aretw0/pathflow/pkg/persistence/middleware"
	"github.com/aretw0/pathflow/pkg/ports"
	"github.com/aretw0/pathflow/pkg/providers"
	"github.com/aretw0/pathflow/pkg/registry"
	"github.com/aretw0/pathflow/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is a controller wired from configuration, with the collaborators the
// commands need.
type App struct {
	Controller *pathflow.Controller
	Loader     *yaml.Loader
	Registry   *registry.Registry
	// Metrics is nil when metrics are disabled.
	Metrics *prometheus.Registry

	closers []func() error
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Reload reads the signal files again. Registration is all-or-nothing, so a
// broken file leaves the previous signals in place.
func (a *App) Reload() error {
	return a.Controller.Load(a.Loader)
}

type backends struct {
	runs    ports.RunStore
	kv      ports.KeyValueStore
	locker  ports.DistributedLocker
	closers []func() error
}

func openBackends(cfg config.Config) (*backends, error) {
	b := &backends{}
	switch cfg.Store.Driver {
	case config.DriverRedis:
		rc := cfg.Store.Redis
		client := redis.NewClient(rc.Addr, rc.Password, rc.DB)
		b.runs = redis.NewRunStore(client, redis.WithPrefix(rc.Prefix+"run:"), redis.WithTTL(rc.TTL))
		b.kv = redis.NewStore(client, redis.WithPrefix(rc.Prefix+"kv:"))
		b.locker = redis.NewLocker(client, rc.Prefix)
		b.closers = append(b.closers, client.Close)
	case config.DriverFile:
		b.runs = adapters.NewFileRunStore(cfg.Store.File.Path)
		b.kv = memory.NewStore()
	case config.DriverMemory:
		b.runs = memory.NewRunStore()
		b.kv = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	active, fallback, err := cfg.Security.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		enc := middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback}
		b.runs = middleware.NewRunEncryption(enc)(b.runs)
		b.kv = middleware.NewStoreEncryption(enc)(b.kv)
	}
	// PII masking wraps encryption: results are masked before they are sealed.
	if len(cfg.Security.PIIPatterns) > 0 {
		b.runs = middleware.NewPIIMiddleware(cfg.Security.PIIPatterns)(b.runs)
	}
	return b, nil
}

// Build wires a controller from configuration and loads the configured
// signal files.
func Build(cfg config.Config, logger *slog.Logger) (*App, error) {
	b, err := openBackends(cfg)
	if err != nil {
		return nil, err
	}

	tools, err := process.LoadTools(cfg.Tools.Path)
	if err != nil {
		for _, c := range b.closers {
			c()
		}
		return nil, err
	}

	app := &App{
		Registry: actions.NewRegistry(),
		closers:  b.closers,
	}
	app.Registry.Register("exec", process.NewRunner(process.WithTools(tools)).Factory())
	app.Loader = yaml.NewLoader(app.Registry, cfg.Signals.Paths...)

	// 1. Providers
	provs := []ports.Provider{
		providers.NewLogger(logger),
		providers.NewHTTP(cfg.HTTP.BaseURL),
	}
	if len(cfg.Storage.Sync) > 0 {
		mgrOpts := []storage.Option{storage.WithLogger(logger)}
		if b.locker != nil {
			mgrOpts = append(mgrOpts, storage.WithLocker(b.locker))
		}
		provs = append(provs, providers.NewStorage(
			storage.NewManager(b.kv, mgrOpts...),
			providers.WithPrefix(cfg.Storage.Prefix),
			providers.WithSyncKeys(cfg.Storage.Sync...),
			providers.WithStorageLogger(logger),
		))
	}

	// 2. Logger & Hooks
	hooks := []domain.LifecycleHooks{observability.LogHooks(logger)}
	if cfg.Metrics.Enabled {
		app.Metrics = prometheus.NewRegistry()
		app.Metrics.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := observability.NewMetrics(app.Metrics)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("error registering metrics: %w", err)
		}
		hooks = append(hooks, m.Hooks())
	}

	policy, err := cfg.Policy()
	if err != nil {
		app.Close()
		return nil, err
	}

	// 3. Initialize
	app.Controller = pathflow.New(
		pathflow.WithLogger(logger),
		pathflow.WithProviders(provs...),
		pathflow.WithLifecycleHooks(observability.Combine(hooks...)),
		pathflow.WithOutputPolicy(policy),
		pathflow.WithStrictWiring(cfg.StrictWiring),
		pathflow.WithRunStore(b.runs),
	)

	if err := app.Reload(); err != nil {
		app.Close()
		return nil, fmt.Errorf("error loading signals: %w", err)
	}
	return app, nil
}
