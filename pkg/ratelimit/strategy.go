package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"
)

type Logger interface {
	Error(msg string, args ...any)
}

func generateUniqueID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// RateLimiter decides whether the caller identified by key has exhausted its budget.
type RateLimiter interface {
	GetLimitDetails() (int, time.Duration)
	IsLimited(ctx context.Context, key string) (bool, error)
	Close() error
}

// InMemoryRateLimiter is a per-key token bucket for single-instance deployments.
type InMemoryRateLimiter struct {
	requests int
	window   time.Duration

	mu       sync.Mutex
	limiters map[string]*keyedLimiter
	ops      uint64
	now      func() time.Time
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewInMemoryRateLimiter(requests int, window time.Duration) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		requests: requests,
		window:   window,
		limiters: make(map[string]*keyedLimiter),
		now:      time.Now,
	}
}

func (r *InMemoryRateLimiter) GetLimitDetails() (int, time.Duration) {
	return r.requests, r.window
}

func (r *InMemoryRateLimiter) IsLimited(_ context.Context, key string) (bool, error) {
	if key == "" {
		key = "__empty__"
	}

	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.limiters[key]
	if !ok {
		rps := float64(r.requests) / r.window.Seconds()
		k = &keyedLimiter{limiter: rate.NewLimiter(rate.Limit(rps), r.requests)}
		r.limiters[key] = k
	}
	k.lastSeen = now

	// Sweep idle keys every 1024 calls.
	r.ops++
	if r.ops%1024 == 0 {
		cutoff := now.Add(-2 * r.window)
		for kKey, kVal := range r.limiters {
			if kVal.lastSeen.Before(cutoff) {
				delete(r.limiters, kKey)
			}
		}
	}

	return !k.limiter.AllowN(now, 1), nil
}

// Size returns the number of tracked keys.
func (r *InMemoryRateLimiter) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

func (r *InMemoryRateLimiter) Close() error {
	return nil
}

const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local expire = tonumber(ARGV[4])
local memberId = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

if redis.call('ZCARD', key) >= limit then
	return 1
end

redis.call('ZADD', key, now, memberId)
redis.call('EXPIRE', key, expire)

return 0
`

// RedisRateLimiter is a sliding-window limiter shared by every replica.
type RedisRateLimiter struct {
	client    *redis.Client
	script    *redis.Script
	requests  int
	window    time.Duration
	keyPrefix string
	logger    Logger
}

func NewRedisRateLimiter(client *redis.Client, requests int, window time.Duration, keyPrefix string, logger Logger) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	return &RedisRateLimiter{
		client:    client,
		script:    redis.NewScript(slidingWindowScript),
		requests:  requests,
		window:    window,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

func (r *RedisRateLimiter) GetLimitDetails() (int, time.Duration) {
	return r.requests, r.window
}

func (r *RedisRateLimiter) IsLimited(ctx context.Context, key string) (bool, error) {
	fullKey := key
	if !strings.HasPrefix(key, r.keyPrefix) {
		fullKey = r.keyPrefix + key
	}

	result, err := r.script.Run(ctx, r.client, []string{fullKey},
		time.Now().Unix(),
		int64(r.window.Seconds()),
		r.requests,
		int64((r.window * 2).Seconds()),
		generateUniqueID(),
	).Int64()
	if err != nil {
		if r.logger != nil {
			r.logger.Error("Redis rate limit script execution failed", "key", fullKey, "error", err)
		}
		// Limiting is a security control: fail closed.
		return false, fmt.Errorf("rate limiter Redis error: %w", err)
	}
	return result == 1, nil
}

// Close is a no-op; the Redis client is owned by the application config.
func (r *RedisRateLimiter) Close() error {
	return nil
}

type RateLimitConfig struct {
	Requests  int
	Window    time.Duration
	KeyPrefix string
	Redis     *redis.Client // nil selects the in-memory limiter
	Logger    Logger
}

func NewRateLimiter(config *RateLimitConfig) RateLimiter {
	if config.Redis != nil {
		return NewRedisRateLimiter(config.Redis, config.Requests, config.Window, config.KeyPrefix, config.Logger)
	}
	return NewInMemoryRateLimiter(config.Requests, config.Window)
}
