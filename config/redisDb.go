package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by Throttle while a previous lock on the key is live.
var ErrLocked = errors.New("resource is locked")

// RedisCache wraps an optional redis client. A nil *RedisCache (or one
// without a client) turns every call into a no-op so callers never need to
// know whether REDIS_ADDRESS was configured.
type RedisCache struct {
	rdb    *redis.Client
	locker *redislock.Client
}

// ConnectRedis returns nil, nil when addr is empty.
func ConnectRedis(ctx context.Context, addr string) (*RedisCache, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       0,
		PoolSize: 20,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewRedisCache(rdb), nil
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb, locker: redislock.New(rdb)}
}

func (c *RedisCache) enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *RedisCache) GetObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err = json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) SetObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	if !c.enabled() {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, objInByte, exp).Err()
}

func (c *RedisCache) SetValue(ctx context.Context, key string, value string, exp time.Duration) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Set(ctx, key, value, exp).Err()
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCache) Remove(ctx context.Context, keys ...string) error {
	if !c.enabled() || len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Throttle holds a lock on key for ttl without releasing it; a second
// caller inside the window gets ErrLocked.
func (c *RedisCache) Throttle(ctx context.Context, key string, ttl time.Duration) error {
	if !c.enabled() {
		return nil
	}
	_, err := c.locker.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrLocked
	}
	return err
}

func (c *RedisCache) Close() error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Close()
}
