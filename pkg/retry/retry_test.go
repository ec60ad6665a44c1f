package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) *Config {
	return &Config{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestExponentialBackoff_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := NewExponentialBackoff(fastConfig(3)).Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExponentialBackoff_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("password authentication failed")
	err := NewExponentialBackoff(fastConfig(5)).Execute(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.False(t, IsMaxRetriesExceeded(err))
	assert.Equal(t, 1, calls)
}

func TestFixedDelay_ReportsExhaustion(t *testing.T) {
	transient := errors.New("i/o timeout")
	err := NewFixedDelay(fastConfig(2)).Execute(context.Background(), func(context.Context) error {
		return transient
	})

	require.True(t, IsMaxRetriesExceeded(err))
	assert.ErrorIs(t, err, transient)
}

func TestExecute_HonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxAttempts: 10, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}

	calls := 0
	err := NewExponentialBackoff(cfg).Execute(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("service unavailable")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCalculateDelay_IsCapped(t *testing.T) {
	eb := NewExponentialBackoff(&Config{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2})

	assert.Equal(t, time.Second, eb.calculateDelay(1))
	assert.Equal(t, 2*time.Second, eb.calculateDelay(2))
	assert.Equal(t, 3*time.Second, eb.calculateDelay(3))
}

func TestConfig_CustomClassifier(t *testing.T) {
	calls := 0
	cfg := fastConfig(3)
	cfg.Retryable = func(error) bool { return true }

	err := NewFixedDelay(cfg).Execute(context.Background(), func(context.Context) error {
		calls++
		return errors.New("anything")
	})

	assert.True(t, IsMaxRetriesExceeded(err))
	assert.Equal(t, 3, calls)
}
