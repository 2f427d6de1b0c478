package pathflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/pathflow/internal/logging"
	"github.com/aretw0/pathflow/internal/runtime"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/ports"
	"github.com/google/uuid"
)

// OutputPolicy re-exports the executor policy for plain results from
// actions that declare outputs.
type OutputPolicy = runtime.OutputPolicy

const (
	// OutputPolicyLinear continues with the next item of the current sequence.
	OutputPolicyLinear = runtime.OutputPolicyLinear
	// OutputPolicyStrict fails the run with a RoutingError.
	OutputPolicyStrict = runtime.OutputPolicyStrict
)

// Warning is a non-fatal finding from signal registration.
type Warning = runtime.Warning

// ResultListener receives every finished run.
type ResultListener func(ctx context.Context, result *domain.Result)

// Controller is the signal invocation boundary. It owns the registered
// signal trees and runs them with a fresh context per run.
// It is safe for concurrent use.
type Controller struct {
	engine *runtime.Engine
	logger *slog.Logger
	store  ports.RunStore
	strict bool
	seed   map[string]any
	newID  func() string

	engineOpts []runtime.EngineOption

	mu       sync.RWMutex
	signals  map[string]domain.Signal
	warnings map[string][]Warning

	lmu       sync.RWMutex
	listeners map[int]ResultListener
	nextL     int

	fmu      sync.Mutex
	inflight map[string]struct{}
}

// Option configures the Controller.
type Option func(*Controller)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProviders sets the provider chain run before each action.
func WithProviders(providers ...ports.Provider) Option {
	return func(c *Controller) {
		c.engineOpts = append(c.engineOpts, runtime.WithProviders(providers...))
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.engineOpts = append(c.engineOpts, runtime.WithLifecycleHooks(hooks))
	}
}

// WithOutputPolicy sets the policy for plain results from branching actions.
func WithOutputPolicy(policy OutputPolicy) Option {
	return func(c *Controller) {
		c.engineOpts = append(c.engineOpts, runtime.WithOutputPolicy(policy))
	}
}

// WithStrictWiring rejects signals with declared but unwired outputs at
// registration instead of logging a warning.
func WithStrictWiring(strict bool) Option {
	return func(c *Controller) {
		c.strict = strict
	}
}

// WithRunStore persists every finished run.
func WithRunStore(store ports.RunStore) Option {
	return func(c *Controller) {
		c.store = store
	}
}

// WithInitialContext seeds the context of every run.
// Values are copied shallowly into each run's own context.
func WithInitialContext(seed map[string]any) Option {
	return func(c *Controller) {
		c.seed = maps.Clone(seed)
	}
}

// WithIDGenerator replaces the default UUID run IDs.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		c.newID = fn
	}
}

// New creates a Controller with no signals registered.
func New(opts ...Option) *Controller {
	c := &Controller{
		logger:    logging.NewNop(),
		newID:     uuid.NewString,
		signals:   make(map[string]domain.Signal),
		warnings:  make(map[string][]Warning),
		listeners: make(map[int]ResultListener),
		inflight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.engine = runtime.NewEngine(append(c.engineOpts, runtime.WithLogger(c.logger))...)
	return c
}

// Register validates and stores signals. Nothing is stored if any signal is
// invalid. Registering a name again replaces the previous tree.
func (c *Controller) Register(signals ...domain.Signal) error {
	found := make(map[string][]Warning, len(signals))
	var errs domain.ValidationErrors
	for _, sig := range signals {
		warnings, err := runtime.ValidateSignal(sig, c.strict)
		if err != nil {
			var verrs domain.ValidationErrors
			if errors.As(err, &verrs) {
				errs = append(errs, verrs...)
				continue
			}
			return err
		}
		found[sig.Name] = warnings
	}
	if len(errs) > 0 {
		return errs
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sig := range signals {
		if _, exists := c.signals[sig.Name]; exists {
			c.logger.Debug("signal replaced", "signal", sig.Name)
		}
		c.signals[sig.Name] = sig
		c.warnings[sig.Name] = found[sig.Name]
		for _, w := range found[sig.Name] {
			c.logger.Warn("declared output has no branch", "signal", sig.Name, "action", w.Action, "output", w.Output)
		}
	}
	return nil
}

// Load registers every signal a loader produces.
func (c *Controller) Load(loader ports.SignalLoader) error {
	signals, err := loader.LoadSignals()
	if err != nil {
		return fmt.Errorf("failed to load signals: %w", err)
	}
	return c.Register(signals...)
}

// Signals returns the registered signal names in sorted order.
func (c *Controller) Signals() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.signals))
}

// Inspect returns the tree registered under name.
func (c *Controller) Inspect(name string) (domain.Signal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sig, ok := c.signals[name]
	return sig, ok
}

// Warnings returns the registration warnings of a signal.
func (c *Controller) Warnings(name string) []Warning {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.warnings[name])
}

// RunOption adjusts a single run.
type RunOption func(*runConfig)

type runConfig struct {
	id   string
	seed map[string]any
}

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) RunOption {
	return func(rc *runConfig) {
		rc.id = id
	}
}

// WithContext adds values to this run's initial context, overriding the
// controller-wide seed.
func WithContext(seed map[string]any) RunOption {
	return func(rc *runConfig) {
		if rc.seed == nil {
			rc.seed = make(map[string]any, len(seed))
		}
		maps.Copy(rc.seed, seed)
	}
}

// Run triggers the named signal with payload and blocks until it completes
// or fails. For a registered signal the returned Result is never nil: on
// failure it carries the context as it stood when the error happened.
// A run ID may only be in flight once; a second concurrent Run with the same
// ID fails with ErrRunInFlight and returns no Result.
func (c *Controller) Run(ctx context.Context, name string, payload any, opts ...RunOption) (*domain.Result, error) {
	sig, ok := c.Inspect(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSignal, name)
	}

	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = c.newID()
	}
	if !c.acquire(cfg.id) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunInFlight, cfg.id)
	}
	defer c.release(cfg.id)

	seed := maps.Clone(c.seed)
	if seed == nil {
		seed = make(map[string]any, len(cfg.seed))
	}
	maps.Copy(seed, cfg.seed)
	delete(seed, domain.KeyPath)

	result, err := c.engine.Execute(ctx, cfg.id, sig, domain.NewContext(seed), payload)

	if c.store != nil {
		if saveErr := c.store.Save(ctx, result); saveErr != nil {
			c.logger.Error("failed to persist run", "signal", name, "run_id", cfg.id, "err", saveErr)
		}
	}
	c.notify(ctx, result)
	return result, err
}

func (c *Controller) acquire(id string) bool {
	c.fmu.Lock()
	defer c.fmu.Unlock()
	if _, busy := c.inflight[id]; busy {
		return false
	}
	c.inflight[id] = struct{}{}
	return true
}

func (c *Controller) release(id string) {
	c.fmu.Lock()
	defer c.fmu.Unlock()
	delete(c.inflight, id)
}

// LoadRun returns a persisted run.
func (c *Controller) LoadRun(ctx context.Context, runID string) (*domain.Result, error) {
	if c.store == nil {
		return nil, fmt.Errorf("%w: %s (no run store configured)", domain.ErrRunNotFound, runID)
	}
	return c.store.Load(ctx, runID)
}

// ListRuns returns the IDs of persisted runs.
func (c *Controller) ListRuns(ctx context.Context) ([]string, error) {
	if c.store == nil {
		return []string{}, nil
	}
	return c.store.List(ctx)
}

// OnResult registers a listener for finished runs and returns a function
// removing it. Listeners run synchronously on the run's goroutine.
func (c *Controller) OnResult(fn ResultListener) (remove func()) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	id := c.nextL
	c.nextL++
	c.listeners[id] = fn
	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Controller) notify(ctx context.Context, result *domain.Result) {
	c.lmu.RLock()
	listeners := slices.Collect(maps.Values(c.listeners))
	c.lmu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, result)
	}
}
