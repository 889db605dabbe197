// Package cache keeps rolled rate indexes in Redis so read paths can skip the
// database. Entries are keyed by (region, epoch) and expire at the epoch end;
// a rolled index never changes inside its epoch.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"twubi/internal/ledger/models"
	"twubi/pkg/platform/circuit"
)

const rateIndexKeyPrefix = "ubi:rate_index:"

// RateIndexCache is a best-effort Redis cache. Every failure degrades to a
// miss; repeated failures open the breaker and bypass Redis until cooldown.
type RateIndexCache struct {
	client  *redis.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// Option configures a RateIndexCache.
type Option func(*RateIndexCache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *RateIndexCache) {
		c.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *RateIndexCache) {
		c.breaker = b
	}
}

func NewRateIndexCache(client *redis.Client, opts ...Option) *RateIndexCache {
	c := &RateIndexCache{
		client:  client,
		breaker: circuit.New("rate_index_cache"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func key(region models.RegionID, epoch int64) string {
	return fmt.Sprintf("%s%d:%d", rateIndexKeyPrefix, region, epoch)
}

// Get returns the cached index for (region, epoch).
func (c *RateIndexCache) Get(ctx context.Context, region models.RegionID, epoch int64) (*models.RateIndex, bool) {
	if !c.breaker.Allow() {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key(region, epoch)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.recordSuccess()
		return nil, false
	}
	if err != nil {
		c.recordFailure(ctx, "get", err)
		return nil, false
	}
	c.recordSuccess()

	var ri models.RateIndex
	if err := json.Unmarshal(raw, &ri); err != nil {
		c.logger.WarnContext(ctx, "discarding corrupt rate index cache entry",
			"region", region,
			"epoch", epoch,
			"error", err,
		)
		return nil, false
	}
	if ri.Region != region || ri.LastRolledEpoch != epoch {
		return nil, false
	}
	return &ri, true
}

// Set stores ri under its own (region, last rolled epoch) key.
func (c *RateIndexCache) Set(ctx context.Context, ri *models.RateIndex, ttl time.Duration) {
	if ri == nil || ttl <= 0 || !c.breaker.Allow() {
		return
	}
	raw, err := json.Marshal(ri)
	if err != nil {
		c.logger.ErrorContext(ctx, "encode rate index for cache", "error", err)
		return
	}
	if err := c.client.Set(ctx, key(ri.Region, ri.LastRolledEpoch), raw, ttl).Err(); err != nil {
		c.recordFailure(ctx, "set", err)
		return
	}
	c.recordSuccess()
}

func (c *RateIndexCache) recordFailure(ctx context.Context, op string, err error) {
	_, change := c.breaker.RecordFailure()
	c.logger.WarnContext(ctx, "rate index cache unavailable",
		"op", op,
		"error", err,
	)
	if change.Opened {
		c.logger.WarnContext(ctx, "rate index cache circuit opened", "breaker", c.breaker.Name())
	}
}

func (c *RateIndexCache) recordSuccess() {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("rate index cache circuit closed", "breaker", c.breaker.Name())
	}
}
