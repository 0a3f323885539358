package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps per-key state in redis, one JSON value per check key.
// Useful when several small hosts should share alert deduplication state.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (rs *RedisStore) redisKey(key string) string {
	return rs.prefix + key
}

func (rs *RedisStore) Get(ctx context.Context, key string) State {
	b, err := rs.client.Get(ctx, rs.redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			rs.logger.Error("failed to read state from redis, using default",
				zap.String("key", key), zap.Error(err))
		}
		return Default()
	}
	var st State
	if err = json.Unmarshal(b, &st); err != nil {
		rs.logger.Warn("dropping unparseable state record",
			zap.String("key", key), zap.Error(err))
		return Default()
	}
	return st
}

func (rs *RedisStore) Put(ctx context.Context, key string, st State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("RedisStore.Put: %w", err)
	}
	if err = rs.client.Set(ctx, rs.redisKey(key), b, 0).Err(); err != nil {
		return fmt.Errorf("RedisStore.Put: %w", err)
	}
	return nil
}

func (rs *RedisStore) Prune(ctx context.Context, active map[string]struct{}) error {
	iter := rs.client.Scan(ctx, 0, rs.prefix+"*", 0).Iterator()
	var stale []string
	for iter.Next(ctx) {
		key := iter.Val()[len(rs.prefix):]
		if _, ok := active[key]; !ok {
			stale = append(stale, iter.Val())
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("RedisStore.Prune: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	if err := rs.client.Del(ctx, stale...).Err(); err != nil {
		return fmt.Errorf("RedisStore.Prune: %w", err)
	}
	return nil
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
