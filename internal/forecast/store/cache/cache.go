// Package cache holds served prediction results in Redis. Keys embed the
// model set version, a fingerprint of the set's contents, so installing a
// different set orphans every cached result for that sector while restarted
// processes and other replicas serving the same artifacts keep sharing
// entries. TTL expiry removes orphans.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"carboncast/internal/forecast/models"
	"carboncast/pkg/domain"
)

const (
	keyPrefix  = "carboncast:predict:"
	DefaultTTL = 10 * time.Minute
)

// Cache looks up and stores prediction results.
type Cache interface {
	Get(ctx context.Context, sector domain.Sector, version string, input float64) (*models.PredictionResult, bool, error)
	Set(ctx context.Context, sector domain.Sector, version string, input float64, result *models.PredictionResult) error
}

// RedisCache is a Redis-backed Cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Key returns the cache key for one prediction.
func Key(sector domain.Sector, version string, input float64) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, sector, version, strconv.FormatFloat(input, 'g', -1, 64))
}

// Get returns (nil, false, nil) on a miss.
func (c *RedisCache) Get(ctx context.Context, sector domain.Sector, version string, input float64) (*models.PredictionResult, bool, error) {
	raw, err := c.client.Get(ctx, Key(sector, version, input)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached prediction: %w", err)
	}
	var res models.PredictionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, fmt.Errorf("decode cached prediction: %w", err)
	}
	return &res, true, nil
}

func (c *RedisCache) Set(ctx context.Context, sector domain.Sector, version string, input float64, result *models.PredictionResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode prediction: %w", err)
	}
	if err := c.client.Set(ctx, Key(sector, version, input), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached prediction: %w", err)
	}
	return nil
}
