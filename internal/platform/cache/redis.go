package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a Cache backed by go-redis, giving the hot edge cache real TTL
// semantics and shared visibility across aggregator and solver processes.
type Redis struct {
	client *redis.Client
}

// NewRedis builds a Redis-backed Cache.
func NewRedis(addr, password string, db int) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Get returns the stored value, or ErrMiss on redis.Nil.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, &ErrMiss{Key: key}
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores value under key with the given TTL (zero means no expiry).
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
