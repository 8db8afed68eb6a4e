package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/agentcouncil/types"
)

// RedisLogStore is a Redis-based implementation of LogStore.
// Suitable for distributed production deployments.
// Each log is a JSON string value; a sorted set scored by timestamp indexes them.
type RedisLogStore struct {
	client    redis.UniversalClient
	keyPrefix string
	maxLogs   int
	ownClient bool
}

// NewRedisLogStore creates a new Redis-based log store and verifies the connection
func NewRedisLogStore(config StoreConfig) (*RedisLogStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := NewRedisLogStoreWithClient(client, config)
	store.ownClient = true
	return store, nil
}

// NewRedisLogStoreWithClient wraps an existing client. The client is not closed by Close.
func NewRedisLogStoreWithClient(client redis.UniversalClient, config StoreConfig) *RedisLogStore {
	keyPrefix := config.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisLogStore{
		client:    client,
		keyPrefix: keyPrefix + "log:",
		maxLogs:   config.MaxLogs,
	}
}

// Close closes the store
func (s *RedisLogStore) Close() error {
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}

// Ping checks if the store is healthy
func (s *RedisLogStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisLogStore) logKey(id string) string {
	return s.keyPrefix + "data:" + id
}

func (s *RedisLogStore) indexKey() string {
	return s.keyPrefix + "index"
}

// Append stores a new log
func (s *RedisLogStore) Append(ctx context.Context, log *types.WorkflowLog) error {
	stored, err := prepareLog(log)
	if err != nil {
		return err
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.logKey(stored.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save log: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}

	if err := s.client.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(stored.Timestamp.UnixNano()),
		Member: stored.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index log: %w", err)
	}
	return s.evict(ctx)
}

// evict drops the oldest logs beyond maxLogs
func (s *RedisLogStore) evict(ctx context.Context) error {
	if s.maxLogs <= 0 {
		return nil
	}
	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil || n <= int64(s.maxLogs) {
		return err
	}
	stale, err := s.client.ZRange(ctx, s.indexKey(), 0, n-int64(s.maxLogs)-1).Result()
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	for _, id := range stale {
		pipe.Del(ctx, s.logKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns a stored log
func (s *RedisLogStore) Get(ctx context.Context, id string) (*types.WorkflowLog, error) {
	data, err := s.client.Get(ctx, s.logKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get log: %w", err)
	}
	var l types.WorkflowLog
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal log: %w", err)
	}
	return &l, nil
}

// List returns logs newest first
func (s *RedisLogStore) List(ctx context.Context, opts ListOptions) ([]*types.WorkflowLog, error) {
	opts = opts.normalize()
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), int64(opts.Offset), int64(opts.Offset+opts.Limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	if len(ids) == 0 {
		return []*types.WorkflowLog{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.logKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load logs: %w", err)
	}

	logs := make([]*types.WorkflowLog, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // index entry without data
		}
		var l types.WorkflowLog
		if err := json.Unmarshal([]byte(str), &l); err != nil {
			continue
		}
		logs = append(logs, &l)
	}
	return logs, nil
}

// Count returns the number of stored logs
func (s *RedisLogStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count logs: %w", err)
	}
	return int(n), nil
}

// Delete removes a log
func (s *RedisLogStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.logKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete log: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every log
func (s *RedisLogStore) Clear(ctx context.Context) (int, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list logs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.logKey(id))
	}
	keys = append(keys, s.indexKey())
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to clear logs: %w", err)
	}
	return len(ids), nil
}
