package factory

import (
	"time"

	"github.com/akeren/launch-waitlist/pkg/ratelimit"
	"github.com/go-redis/redis/v8"
)

type RedisClientProvider interface {
	GetClient() *redis.Client
}

type RateLimiterFactory interface {
	// ForEndpoint builds a limiter dedicated to one endpoint; scope keeps its
	// Redis keys apart from every other limiter sharing the server.
	ForEndpoint(scope string, requests int, window time.Duration) ratelimit.RateLimiter
}

type DefaultRateLimiterFactory struct {
	redis  *redis.Client
	logger ratelimit.Logger
}

// NewRateLimiterFactory uses Redis when client is non-nil and falls back to in-memory buckets otherwise.
func NewRateLimiterFactory(client *redis.Client, logger ratelimit.Logger) *DefaultRateLimiterFactory {
	return &DefaultRateLimiterFactory{redis: client, logger: logger}
}

// NewRateLimiterFactoryFromCache pulls the Redis client out of cache when it exposes one.
func NewRateLimiterFactoryFromCache(cache any, logger ratelimit.Logger) *DefaultRateLimiterFactory {
	var client *redis.Client
	if provider, ok := cache.(RedisClientProvider); ok && provider != nil {
		client = provider.GetClient()
	}
	return NewRateLimiterFactory(client, logger)
}

func (f *DefaultRateLimiterFactory) ForEndpoint(scope string, requests int, window time.Duration) ratelimit.RateLimiter {
	return ratelimit.NewRateLimiter(&ratelimit.RateLimitConfig{
		Requests:  requests,
		Window:    window,
		KeyPrefix: scope + ":",
		Redis:     f.redis,
		Logger:    f.logger,
	})
}

// UsesRedis reports whether limiters from this factory are shared across replicas.
func (f *DefaultRateLimiterFactory) UsesRedis() bool {
	return f.redis != nil
}
