package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}

// RateLimiter is a fixed-window request counter backed by Redis.
// Calls go through a circuit breaker so an unhealthy Redis is skipped quickly.
type RateLimiter struct {
	client  *redis.Client
	breaker *CircuitBreaker
	prefix  string
	limit   int64
	window  time.Duration
	now     func() time.Time
}

// NewRateLimiter allows limit requests per key in each window
func NewRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:  client,
		breaker: NewCircuitBreaker(5, 30*time.Second),
		prefix:  prefix,
		limit:   int64(limit),
		window:  window,
		now:     time.Now,
	}
}

// Allow counts one request for key. When Redis is unavailable the request is
// allowed and the error is returned so the caller can log it.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.now().UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)

	var count int64
	err := l.breaker.Call(func() error {
		var incr *redis.IntCmd
		_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, redisKey)
			pipe.Expire(ctx, redisKey, l.window)
			return nil
		})
		if err != nil {
			return err
		}
		count = incr.Val()
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("rate limiter unavailable: %w", err)
	}
	return count <= l.limit, nil
}

// BreakerState exposes the circuit breaker state for health reporting
func (l *RateLimiter) BreakerState() CircuitState {
	return l.breaker.GetState()
}
