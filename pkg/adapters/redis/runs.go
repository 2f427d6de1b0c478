package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/pathflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// farFuture is the index score of results that never expire (2100-01-01).
const farFuture = 4102444800

// RunStore implements ports.RunStore using Redis.
// Results are JSON documents under <prefix>id:<run id>; a sorted set at
// <prefix>index indexes them by expiry. No run ID can reach the index key.
type RunStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRunStore creates a run store from an existing client.
func NewRunStore(client *backend.Client, opts ...Option) *RunStore {
	o := buildOptions(DefaultPrefix+"run:", opts)
	return &RunStore{
		client: client,
		prefix: o.prefix,
		ttl:    o.ttl,
		now:    time.Now,
	}
}

func (s *RunStore) key(runID string) string {
	return s.prefix + "id:" + runID
}

func (s *RunStore) indexKey() string {
	return s.prefix + "index"
}

// Save persists the result to Redis.
func (s *RunStore) Save(ctx context.Context, result *domain.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	pipe := s.client.Pipeline()

	// 1. Save JSON with TTL (0 means no expiration)
	pipe.Set(ctx, s.key(result.RunID), data, s.ttl)

	// 2. Add to Index (ZSET), scored by expiry
	score := float64(s.now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: result.RunID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the result from Redis.
func (s *RunStore) Load(ctx context.Context, runID string) (*domain.Result, error) {
	val, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var result domain.Result
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// Delete removes the result and its index entry.
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns stored run IDs, pruning expired ones from the index first.
func (s *RunStore) List(ctx context.Context) ([]string, error) {
	now := float64(s.now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired runs: %w", err)
	}

	runs, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
