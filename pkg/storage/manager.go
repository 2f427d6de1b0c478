package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/pathflow/internal/logging"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock on one key may be held.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serialises access to keys of a KeyValueStore.
// Concurrent runs writing the same external key are ordered here, never by
// the executor. It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.KeyValueStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new storage Manager over the given store.
func NewManager(store ports.KeyValueStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Get reads a key under its lock.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		value, err = m.store.Get(ctx, key)
		return err
	})
	return value, err
}

// Set writes a key under its lock.
func (m *Manager) Set(ctx context.Context, key string, value []byte) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.store.Set(ctx, key, value)
	})
}

// Delete removes a key under its lock.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.store.Delete(ctx, key)
	})
}

// Update performs a read-modify-write on key while holding its lock.
// fn receives the current value (nil, false when missing) and returns the new
// value; returning nil deletes the key.
func (m *Manager) Update(ctx context.Context, key string, fn func(current []byte, found bool) ([]byte, error)) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		current, err := m.store.Get(ctx, key)
		found := true
		if errors.Is(err, domain.ErrKeyNotFound) {
			current, found = nil, false
		} else if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}

		next, err := fn(current, found)
		if err != nil {
			return err
		}
		if next == nil {
			return m.store.Delete(ctx, key)
		}
		return m.store.Set(ctx, key, next)
	})
}

// Keys delegates to the store.
func (m *Manager) Keys(ctx context.Context, prefix string) ([]string, error) {
	return m.store.Keys(ctx, prefix)
}

// Store returns the underlying key-value store.
func (m *Manager) Store() ports.KeyValueStore {
	return m.store
}

// WithLock executes a function while holding the lock for the key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
