package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ratelimit")

const keyPrefix = "ratelimit:"

// RedisLimiter counts requests with INCR on a key that expires with the
// window, so every replica shares the same counters.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	period time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		limit:  limit,
		period: period,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.RedisLimiter.Allow", trace.WithAttributes(
		attribute.String("ratelimit.key", key),
	))
	defer span.End()

	redisKey := keyPrefix + key

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "incr failed")
		return Decision{}, fmt.Errorf("failed to increment %s: %w", redisKey, err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, redisKey, l.period).Err(); err != nil {
			span.RecordError(err)
			return Decision{}, fmt.Errorf("failed to set expiry on %s: %w", redisKey, err)
		}
	}

	ttl, err := l.rdb.TTL(ctx, redisKey).Result()
	if err != nil {
		span.RecordError(err)
		return Decision{}, fmt.Errorf("failed to read ttl of %s: %w", redisKey, err)
	}
	// A key left without expiry would block the client forever.
	if ttl < 0 {
		if err := l.rdb.Expire(ctx, redisKey, l.period).Err(); err != nil {
			return Decision{}, fmt.Errorf("failed to set expiry on %s: %w", redisKey, err)
		}
		ttl = l.period
	}

	d := decide(count, l.limit, ttl)
	span.SetAttributes(attribute.Int64("ratelimit.count", count), attribute.Bool("ratelimit.allowed", d.Allowed))
	return d, nil
}
