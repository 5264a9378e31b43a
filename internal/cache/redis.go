// Package cache provides a Redis-backed store for online geocoding answers.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const keyPrefix = "quote:geocode:"

// RedisCache implements geocode.Cache on Redis. Expiry is delegated to
// Redis key TTLs.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache parses redisURL (redis://[:password@]host[:port][/db]) and
// returns a cache using it.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

// GetCachedGeocode returns nil, nil on a miss.
func (r *RedisCache) GetCachedGeocode(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cache: get %s", key)
	}
	return val, nil
}

func (r *RedisCache) SetCachedGeocode(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return eris.Wrapf(err, "cache: set %s", key)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (r *RedisCache) Ping(ctx context.Context) error {
	return eris.Wrap(r.client.Ping(ctx).Err(), "cache: ping")
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
