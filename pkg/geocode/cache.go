package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cache stores serialized results. Get returns nil data and nil error on a
// miss.
type Cache interface {
	GetCachedGeocode(ctx context.Context, key string) ([]byte, error)
	SetCachedGeocode(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// cacheKey returns SHA-256 hex of the normalized country and city.
func cacheKey(cc, city string) string {
	normalized := fmt.Sprintf("%s|%s",
		strings.ToUpper(strings.TrimSpace(cc)),
		strings.ToLower(strings.Join(strings.Fields(city), " ")),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

type cached struct {
	next  Client
	cache Cache
	ttl   time.Duration
}

// WithCache puts a read-through cache in front of next. Non-matches are
// cached too so unknown places are not asked again; errors are not.
func WithCache(next Client, c Cache, ttl time.Duration) Client {
	return &cached{next: next, cache: c, ttl: ttl}
}

func (c *cached) GeocodeCity(ctx context.Context, cc, city string) (*Result, error) {
	key := cacheKey(cc, city)
	if r, ok := c.lookup(ctx, key); ok {
		return r, nil
	}

	r, err := c.next.GeocodeCity(ctx, cc, city)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, key, r); err != nil {
		zap.L().Warn("geocode: cache write failed", zap.String("cc", cc), zap.Error(err))
	}
	return r, nil
}

func (c *cached) lookup(ctx context.Context, key string) (*Result, bool) {
	data, err := c.cache.GetCachedGeocode(ctx, key)
	if err != nil {
		zap.L().Warn("geocode: cache read failed", zap.Error(err))
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		zap.L().Warn("geocode: cache entry unreadable", zap.Error(err))
		return nil, false
	}
	r.Cached = true
	zap.L().Debug("geocode cache hit", zap.String("key", key[:12]), zap.Bool("matched", r.Matched))
	return &r, true
}

func (c *cached) store(ctx context.Context, key string, r *Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "geocode: marshal cache entry")
	}
	if err := c.cache.SetCachedGeocode(ctx, key, data, c.ttl); err != nil {
		return eris.Wrap(err, "geocode: store cache")
	}
	return nil
}
