package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shelfgate/shelfgate/internal/config"
)

// maxTxRetries bounds optimistic transaction retries when a watched key
// is modified by a concurrent writer.
const maxTxRetries = 16

// RedisStore implements Store on a shared Redis instance. All keys are
// namespaced under a common prefix so multiple deployments can share
// one database.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func openRedis(ctx context.Context, cfg config.StateConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis state store: %w", err)
	}

	prefix := strings.Trim(strings.TrimSpace(cfg.Redis.Prefix), ":")
	if prefix == "" {
		prefix = "shelfgate"
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

// NewRedisStore wraps an existing client, mainly for tests against a
// local Redis.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: strings.Trim(prefix, ":")}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

// Get returns the value for key, or (nil, nil) when absent.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errKeyRequired
	}

	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// SetWithTTL stores value under key with an expiry.
func (s *RedisStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errKeyRequired
	}

	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Update applies fn to the current value of key inside an optimistic
// WATCH transaction. The write is retried when a concurrent writer
// touches the key between the read and the commit.
func (s *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) ([]byte, error) {
	if key == "" {
		return nil, errKeyRequired
	}
	if fn == nil {
		return nil, errors.New("update function is required")
	}

	fullKey := s.key(key)
	var next []byte

	txn := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, fullKey).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return err
			}
			old = nil
		}

		next, err = fn(old)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fullKey, next, ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txn, fullKey)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("update %s: %w", key, err)
	}

	return nil, fmt.Errorf("update %s: too many contention retries", key)
}

// Increment atomically increments the counter stored at key.
func (s *RedisStore) Increment(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, errKeyRequired
	}

	value, err := s.client.Incr(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return value, nil
}

// ListPush appends value to the list stored at key.
func (s *RedisStore) ListPush(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errKeyRequired
	}

	if err := s.client.RPush(ctx, s.key(key), value).Err(); err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	return nil
}

// ListRange returns all values in the list stored at key, oldest first.
func (s *RedisStore) ListRange(ctx context.Context, key string) ([][]byte, error) {
	if key == "" {
		return nil, errKeyRequired
	}

	values, err := s.client.LRange(ctx, s.key(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}

	out := make([][]byte, 0, len(values))
	for _, v := range values {
		out = append(out, []byte(v))
	}
	return out, nil
}

// Expire re-arms the TTL on key.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if key == "" {
		return errKeyRequired
	}

	if err := s.client.Expire(ctx, s.key(key), ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		full = append(full, s.key(k))
	}
	if len(full) == 0 {
		return nil
	}

	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("delete state keys: %w", err)
	}
	return nil
}

// Ping verifies connectivity for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
