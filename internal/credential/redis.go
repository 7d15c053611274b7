package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 3 * time.Second

// RedisBackend persists tokens as plain string keys in Redis.
type RedisBackend struct {
	rdb     redis.UniversalClient
	prefix  string
	timeout time.Duration
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend stores tokens under prefix+"access_token" and
// prefix+"refresh_token".
func NewRedisBackend(rdb redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{
		rdb:     rdb,
		prefix:  prefix,
		timeout: defaultRedisTimeout,
	}
}

func (b *RedisBackend) key(kind Kind) string {
	return b.prefix + string(kind)
}

func (b *RedisBackend) Load() (map[Kind]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	kinds := []Kind{AccessToken, RefreshToken}
	vals, err := b.rdb.MGet(ctx, b.key(AccessToken), b.key(RefreshToken)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load tokens from redis: %w", err)
	}

	values := make(map[Kind]string)
	for i, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			values[kinds[i]] = s
		}
	}
	return values, nil
}

// Save writes all values in a MULTI/EXEC transaction.
func (b *RedisBackend) Save(values map[Kind]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for kind, v := range values {
			pipe.Set(ctx, b.key(kind), v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save tokens to redis: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(kinds ...Kind) error {
	if len(kinds) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	keys := make([]string, len(kinds))
	for i, kind := range kinds {
		keys[i] = b.key(kind)
	}
	if err := b.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete tokens from redis: %w", err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}
