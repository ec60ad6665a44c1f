package factory

import (
	"context"
	"testing"
	"time"

	"github.com/akeren/launch-waitlist/pkg/ratelimit"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	client *redis.Client
}

func (p fakeProvider) GetClient() *redis.Client { return p.client }

func TestForEndpoint_InMemoryWithoutRedis(t *testing.T) {
	f := NewRateLimiterFactory(nil, nil)
	assert.False(t, f.UsesRedis())

	limiter := f.ForEndpoint("request-code", 2, time.Minute)
	_, ok := limiter.(*ratelimit.InMemoryRateLimiter)
	require.True(t, ok, "expected in-memory limiter")

	requests, window := limiter.GetLimitDetails()
	assert.Equal(t, 2, requests)
	assert.Equal(t, time.Minute, window)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		limited, err := limiter.IsLimited(ctx, "ip")
		require.NoError(t, err)
		assert.False(t, limited)
	}
	limited, err := limiter.IsLimited(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, limited)
}

func TestForEndpoint_RedisWhenProvided(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	f := NewRateLimiterFactoryFromCache(fakeProvider{client: client}, nil)
	assert.True(t, f.UsesRedis())

	_, ok := f.ForEndpoint("request-code", 10, time.Minute).(*ratelimit.RedisRateLimiter)
	assert.True(t, ok, "expected redis limiter")
}

func TestFromCache_IgnoresPlainCaches(t *testing.T) {
	f := NewRateLimiterFactoryFromCache(struct{}{}, nil)
	assert.False(t, f.UsesRedis())

	f = NewRateLimiterFactoryFromCache(nil, nil)
	assert.False(t, f.UsesRedis())
}
