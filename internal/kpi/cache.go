package kpi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/leaderhub/internal/ranking"
)

// DefaultCacheTTL is used when NewCachedRepository is given a non-positive TTL.
const DefaultCacheTTL = 60 * time.Second

const cacheKeyPrefix = "leaderhub:kpi:market:"

// CachedRepository wraps a Repository with a Redis read-through cache of
// per-market snapshots. Redis failures are logged and counted, then the
// call falls through to the wrapped repository.
type CachedRepository struct {
	next    Repository
	client  *redis.Client
	ttl     time.Duration
	metrics *Metrics
	logger  *slog.Logger
}

// NewCachedRepository creates a cache in front of next.
// metrics and logger may be nil.
func NewCachedRepository(next Repository, client *redis.Client, ttl time.Duration, metrics *Metrics, logger *slog.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRepository{
		next:    next,
		client:  client,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// CacheKey returns the Redis key holding a market's records.
func CacheKey(marketID int64) string {
	return cacheKeyPrefix + strconv.FormatInt(marketID, 10)
}

// ListByMarket serves records from Redis when present, otherwise loads them
// from the wrapped repository and stores them with the configured TTL.
func (c *CachedRepository) ListByMarket(ctx context.Context, marketID int64) ([]ranking.Record, error) {
	key := CacheKey(marketID)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var records []ranking.Record
		jsonErr := json.Unmarshal(data, &records)
		if jsonErr == nil {
			c.metrics.incHit()
			return records, nil
		}
		c.metrics.incError("decode")
		c.logger.WarnContext(ctx, "discarding undecodable cached snapshot",
			slog.String("key", key),
			slog.String("error", jsonErr.Error()))
	case errors.Is(err, redis.Nil):
	default:
		c.metrics.incError("get")
		c.logger.WarnContext(ctx, "kpi cache read failed, falling back to store",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}

	c.metrics.incMiss()
	records, err := c.next.ListByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(records)
	if err != nil {
		c.metrics.incError("encode")
		return records, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.metrics.incError("set")
		c.logger.WarnContext(ctx, "kpi cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	return records, nil
}

// ListMarkets is not cached.
func (c *CachedRepository) ListMarkets(ctx context.Context) ([]Market, error) {
	return c.next.ListMarkets(ctx)
}

// UpsertMarket delegates to the wrapped repository.
func (c *CachedRepository) UpsertMarket(ctx context.Context, market Market) error {
	return c.next.UpsertMarket(ctx, market)
}

// Upsert writes through and invalidates the market's cached snapshot.
func (c *CachedRepository) Upsert(ctx context.Context, marketID int64, metrics ProviderMetrics) (bool, error) {
	inserted, err := c.next.Upsert(ctx, marketID, metrics)
	if err != nil {
		return false, err
	}
	if err := c.client.Del(ctx, CacheKey(marketID)).Err(); err != nil {
		c.metrics.incError("del")
		c.logger.WarnContext(ctx, "kpi cache invalidation failed",
			slog.Int64("market_id", marketID),
			slog.String("error", err.Error()))
	}
	return inserted, nil
}
