package storage_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/pathflow/pkg/adapters/memory"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/ports"
	"github.com/aretw0/pathflow/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore simulates latency to provoke race conditions if locking is missing.
type slowStore struct {
	*memory.Store
}

func (s slowStore) Get(ctx context.Context, key string) ([]byte, error) {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.Store.Get(ctx, key)
}

func (s slowStore) Set(ctx context.Context, key string, value []byte) error {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.Store.Set(ctx, key, value)
}

func TestManager_UpdateSerialisesWriters(t *testing.T) {
	mgr := storage.NewManager(slowStore{memory.NewStore()})
	ctx := context.Background()
	key := "counter"

	var wg sync.WaitGroup
	writers := 20
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.Update(ctx, key, func(current []byte, found bool) ([]byte, error) {
				n := 0
				if found {
					n, _ = strconv.Atoi(string(current))
				}
				return []byte(strconv.Itoa(n + 1)), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := mgr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(writers), string(got), "no update may be lost")
}

func TestManager_UpdateNilDeletes(t *testing.T) {
	mgr := storage.NewManager(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, mgr.Set(ctx, "k", []byte("v")))
	require.NoError(t, mgr.Update(ctx, "k", func(current []byte, found bool) ([]byte, error) {
		assert.True(t, found)
		assert.Equal(t, "v", string(current))
		return nil, nil
	}))

	_, err := mgr.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestManager_UpdatePropagatesError(t *testing.T) {
	mgr := storage.NewManager(memory.NewStore())
	boom := errors.New("boom")
	err := mgr.Update(context.Background(), "k", func([]byte, bool) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

type countingLocker struct {
	mu       sync.Mutex
	locks    int
	unlocks  int
	lastTTL  time.Duration
	failWith error
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.locks++
	l.lastTTL = ttl
	return func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocks++
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	mgr := storage.NewManager(memory.NewStore(), storage.WithLocker(locker), storage.WithLockTTL(5*time.Second))
	ctx := context.Background()

	require.NoError(t, mgr.Set(ctx, "a", []byte("1")))
	_, err := mgr.Get(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, 2, locker.locks)
	assert.Equal(t, 2, locker.unlocks)
	assert.Equal(t, 5*time.Second, locker.lastTTL)

	locker.failWith = errors.New("redis down")
	err = mgr.Set(ctx, "a", []byte("2"))
	assert.ErrorContains(t, err, "failed to acquire distributed lock")
}
