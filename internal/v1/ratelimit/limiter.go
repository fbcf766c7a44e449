// Package ratelimit implements throttle.RateLimiter against ulule/limiter,
// backed by Redis in production and an in-process memory store in
// development or tests.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/open-collab/gateway/internal/v1/logging"
	"github.com/open-collab/gateway/internal/v1/throttle"
)

// NewStore picks a Redis-backed store when redisClient is non-nil, and
// falls back to an in-memory store otherwise. The fallback is meant for
// local development and tests, not a production multi-replica deployment
// — an in-memory store only throttles within a single process.
func NewStore(redisClient *redis.Client) (limiter.Store, error) {
	if redisClient == nil {
		logging.Warn(context.Background(), "rate limiter using in-memory store; throttling is per-process only")
		return memory.NewStore(), nil
	}

	store, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "gateway:throttle:"})
	if err != nil {
		return nil, fmt.Errorf("create redis limiter store: %w", err)
	}
	return store, nil
}

// Limiter adapts a single ulule/limiter rate to throttle.RateLimiter.
type Limiter struct {
	inner *limiter.Limiter
}

// NewLimiter builds a Limiter over store at the given formatted rate
// (e.g. "10-M" for 10 per minute), matching the connectThrottler and
// submitOpThrottler configuration shape.
func NewLimiter(store limiter.Store, formattedRate string) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", formattedRate, err)
	}
	return &Limiter{inner: limiter.New(store, rate)}, nil
}

// IncrementCount satisfies throttle.RateLimiter.
func (l *Limiter) IncrementCount(ctx context.Context, key string) (*throttle.Result, error) {
	lc, err := l.inner.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("limiter store: %w", err)
	}

	var retryAfter time.Duration
	if lc.Reached {
		retryAfter = time.Until(time.Unix(lc.Reset, 0))
		if retryAfter < 0 {
			retryAfter = 0
		}
	}

	return &throttle.Result{OverLimit: lc.Reached, RetryAfter: retryAfter}, nil
}
