package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

const (
	AllProductsKey     = "products:all"
	ProductListPattern = "products:*"
)

func ProductKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// Cache is a thin redis facade. It is an accelerator only: callers must
// treat every error as a miss and fall through to the store.
type Cache struct {
	log *slog.Logger
	rdb *redis.Client
	ttl time.Duration
}

func New(log *slog.Logger, rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{log: log, rdb: rdb, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores val under key. A non-positive ttl falls back to the
// configured default, so entries always expire eventually.
func (c *Cache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

func (c *Cache) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Cache) RemoveByPattern(ctx context.Context, pattern string) error {
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return c.Remove(ctx, keys...)
}

// Connect dials redis and pings it. The client is returned even when the
// ping fails: connections are lazy, so the facade keeps working (and
// degrading gracefully) if redis comes up later.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return rdb, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}
