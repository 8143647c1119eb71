// internal/rates/cache.go
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// CachedClient serves quotes from Redis while they are fresh and falls back
// to a stale quote when the upstream provider is down.
type CachedClient struct {
	upstream Client
	redis    *redis.Client
	freshTTL time.Duration
	staleTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type cachedRate struct {
	Rate      decimal.Decimal `json:"rate"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// NewCachedClient wraps upstream. Entries are kept in Redis for
// freshTTL+staleTTL; only the first freshTTL is served without asking upstream.
func NewCachedClient(upstream Client, rdb *redis.Client, freshTTL, staleTTL time.Duration, logger *slog.Logger) *CachedClient {
	return &CachedClient{
		upstream: upstream,
		redis:    rdb,
		freshTTL: freshTTL,
		staleTTL: staleTTL,
		logger:   logger,
		now:      time.Now,
	}
}

func cacheKey(from, to string) string {
	return fmt.Sprintf("rate:%s:%s", strings.ToUpper(from), strings.ToUpper(to))
}

func (c *CachedClient) Quote(ctx context.Context, from, to string) (decimal.Decimal, error) {
	key := cacheKey(from, to)

	entry, found := c.get(ctx, key)
	if found && c.now().Sub(entry.FetchedAt) < c.freshTTL {
		return entry.Rate, nil
	}

	rate, err := c.upstream.Quote(ctx, from, to)
	if err != nil {
		if found && IsRetryable(err) {
			c.logger.Warn("serving stale exchange rate", "pair", key, "fetched_at", entry.FetchedAt, "error", err)
			return entry.Rate, nil
		}
		return decimal.Zero, err
	}

	c.set(ctx, key, cachedRate{Rate: rate, FetchedAt: c.now()})
	return rate, nil
}

// LatestRates always goes to the provider; it backs the catalog refresh.
func (c *CachedClient) LatestRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	rates, err := c.upstream.LatestRates(ctx, base)
	if err != nil {
		return nil, err
	}
	c.prime(ctx, base, rates)
	return rates, nil
}

// prime writes a whole rate table in one round trip.
func (c *CachedClient) prime(ctx context.Context, base string, rates map[string]decimal.Decimal) {
	fetched := c.now()
	pipe := c.redis.Pipeline()
	for to, rate := range rates {
		data, err := json.Marshal(cachedRate{Rate: rate, FetchedAt: fetched})
		if err != nil {
			continue
		}
		pipe.Set(ctx, cacheKey(base, to), data, c.freshTTL+c.staleTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("rate cache prime failed", "base", base, "error", err)
	}
}

func (c *CachedClient) get(ctx context.Context, key string) (cachedRate, bool) {
	var entry cachedRate
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("rate cache read failed", "key", key, "error", err)
		}
		return entry, false
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("discarding corrupt rate cache entry", "key", key, "error", err)
		return entry, false
	}
	return entry, true
}

func (c *CachedClient) set(ctx context.Context, key string, entry cachedRate) {
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("failed to marshal rate cache entry", "key", key, "error", err)
		return
	}
	if err := c.redis.Set(ctx, key, data, c.freshTTL+c.staleTTL).Err(); err != nil {
		c.logger.Warn("rate cache write failed", "key", key, "error", err)
	}
}
