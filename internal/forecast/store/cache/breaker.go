package cache

import (
	"context"
	"log/slog"

	"carboncast/internal/forecast/models"
	"carboncast/pkg/domain"
	"carboncast/pkg/platform/circuit"
)

// BreakerCache stops calling an unhealthy cache until it recovers. While the
// breaker is open, Get reports a miss and Set is a no-op.
type BreakerCache struct {
	inner   Cache
	breaker *circuit.Breaker
	logger  *slog.Logger
}

var _ Cache = (*BreakerCache)(nil)

func NewBreakerCache(inner Cache, breaker *circuit.Breaker, logger *slog.Logger) *BreakerCache {
	return &BreakerCache{inner: inner, breaker: breaker, logger: logger}
}

func (c *BreakerCache) Get(ctx context.Context, sector domain.Sector, version string, input float64) (*models.PredictionResult, bool, error) {
	if !c.breaker.Allow() {
		return nil, false, nil
	}
	res, ok, err := c.inner.Get(ctx, sector, version, input)
	c.record(ctx, err)
	return res, ok, err
}

func (c *BreakerCache) Set(ctx context.Context, sector domain.Sector, version string, input float64, result *models.PredictionResult) error {
	if !c.breaker.Allow() {
		return nil
	}
	err := c.inner.Set(ctx, sector, version, input, result)
	c.record(ctx, err)
	return err
}

func (c *BreakerCache) record(ctx context.Context, err error) {
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "prediction cache disabled after repeated failures",
				"breaker", c.breaker.Name(),
				"error", err,
			)
		}
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "prediction cache recovered", "breaker", c.breaker.Name())
	}
}
