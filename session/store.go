package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV is a Redis-backed [KV]. Keys are namespaced as "<prefix>:<key>" and
// written without expiry; session tokens carry no lifetime of their own.
type RedisKV struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisKV creates a [RedisKV] on the given client. An empty prefix defaults
// to "gogate".
func NewRedisKV(client redis.UniversalClient, prefix string) *RedisKV {
	if prefix == "" {
		prefix = "gogate"
	}
	return &RedisKV{
		redis:  client,
		prefix: prefix,
	}
}

func (s *RedisKV) key(k string) string {
	return s.prefix + ":" + k
}

// Get returns the value stored at key.
//
//	Performance: 1 Redis GET.
func (s *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return v, true, nil
}

// Set writes a single entry.
func (s *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := s.redis.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// SetMany writes all entries inside one MULTI/EXEC so readers never observe a
// partial pair.
//
//	Performance: 1 round trip (pipelined transaction).
func (s *RedisKV) SetMany(ctx context.Context, entries map[string]string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			pipe.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (s *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.key(k))
	}
	if err := s.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisKV) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return time.Since(start), nil
}
