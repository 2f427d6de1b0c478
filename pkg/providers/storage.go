package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/pathflow/internal/logging"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/storage"
)

// DefaultStoragePrefix namespaces synced keys in the external store.
const DefaultStoragePrefix = "pathflow:"

// Storage keeps selected context keys in sync with a key-value store.
//
// On the first action of a run, synced keys missing from the context are
// hydrated from the store. Before every later action, and once more when the
// run ends, keys whose encoded value changed since the last sync are written
// back; keys deleted from the context are deleted from the store.
type Storage struct {
	mgr    *storage.Manager
	prefix string
	sync   map[string]string
	keys   []string
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]map[string][]byte
}

// StorageOption configures the Storage provider.
type StorageOption func(*Storage)

// WithPrefix sets the storage key prefix.
func WithPrefix(prefix string) StorageOption {
	return func(s *Storage) {
		s.prefix = prefix
	}
}

// WithSync maps context keys to storage keys. An empty storage key reuses
// the context key.
func WithSync(sync map[string]string) StorageOption {
	return func(s *Storage) {
		for k, v := range sync {
			if v == "" {
				v = k
			}
			s.sync[k] = v
		}
	}
}

// WithSyncKeys syncs the given context keys under their own names.
func WithSyncKeys(keys ...string) StorageOption {
	return func(s *Storage) {
		for _, k := range keys {
			s.sync[k] = k
		}
	}
}

// WithStorageLogger sets the logger.
func WithStorageLogger(logger *slog.Logger) StorageOption {
	return func(s *Storage) {
		s.logger = logger
	}
}

// NewStorage creates a Storage provider writing through mgr.
func NewStorage(mgr *storage.Manager, opts ...StorageOption) *Storage {
	s := &Storage{
		mgr:    mgr,
		prefix: DefaultStoragePrefix,
		sync:   make(map[string]string),
		logger: logging.NewNop(),
		runs:   make(map[string]map[string][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	for k := range s.sync {
		s.keys = append(s.keys, k)
	}
	slices.Sort(s.keys)
	return s
}

func (s *Storage) Name() string { return "storage" }

// StorageKey returns the external key a context key is synced to.
func (s *Storage) StorageKey(contextKey string) string {
	return s.prefix + s.sync[contextKey]
}

func runKey(ctx context.Context) string {
	info, _ := domain.RunInfoFrom(ctx)
	return info.RunID
}

// Provide hydrates on the first action of a run and flushes on every later one.
func (s *Storage) Provide(ctx context.Context, rc *domain.Context, _ domain.Declaration, _ any) error {
	id := runKey(ctx)

	s.mu.Lock()
	synced, seen := s.runs[id]
	s.mu.Unlock()

	if !seen {
		synced, err := s.hydrate(ctx, rc)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.runs[id] = synced
		s.mu.Unlock()
		return nil
	}
	return s.flush(ctx, rc, synced)
}

// Finish writes the final changes and forgets the run.
func (s *Storage) Finish(ctx context.Context, rc *domain.Context, _ *domain.Result) error {
	id := runKey(ctx)

	s.mu.Lock()
	synced, seen := s.runs[id]
	delete(s.runs, id)
	s.mu.Unlock()

	if !seen {
		return nil
	}
	return s.flush(ctx, rc, synced)
}

func (s *Storage) hydrate(ctx context.Context, rc *domain.Context) (map[string][]byte, error) {
	synced := make(map[string][]byte, len(s.keys))
	for _, key := range s.keys {
		if rc.Has(key) {
			continue
		}
		raw, err := s.mgr.Get(ctx, s.StorageKey(key))
		if errors.Is(err, domain.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hydrate %q: %w", key, err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("hydrate %q: %w", key, err)
		}
		rc.Set(key, v)
		synced[key] = raw
	}
	return synced, nil
}

// flush writes changed keys and updates synced in place.
// synced belongs to a single run and is never touched concurrently.
func (s *Storage) flush(ctx context.Context, rc *domain.Context, synced map[string][]byte) error {
	for _, key := range s.keys {
		v, present := rc.Get(key)
		prev, wasSynced := synced[key]

		if !present {
			if !wasSynced {
				continue
			}
			if err := s.mgr.Delete(ctx, s.StorageKey(key)); err != nil {
				return fmt.Errorf("delete %q: %w", key, err)
			}
			delete(synced, key)
			s.logger.Debug("storage key deleted", "key", key)
			continue
		}

		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %q: %w", key, err)
		}
		if wasSynced && bytes.Equal(prev, raw) {
			continue
		}
		if err := s.mgr.Set(ctx, s.StorageKey(key), raw); err != nil {
			return fmt.Errorf("write %q: %w", key, err)
		}
		synced[key] = raw
		s.logger.Debug("storage key written", "key", key)
	}
	return nil
}
