package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, maxAttempts int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, maxAttempts, window), mr
}

func TestLimiter_AllowsUpToMax(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "container-a")
		require.NoError(t, err)
		require.True(t, ok, "attempt %d should be allowed", i+1)
	}

	ok, err := l.Allow(ctx, "container-a")
	require.NoError(t, err)
	require.False(t, ok, "fourth attempt should be blocked")
}

func TestLimiter_SeparateIdentities(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 1, time.Minute)

	ok, err := l.Allow(ctx, "container-a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Allow(ctx, "container-b")
	require.NoError(t, err)
	require.True(t, ok, "a different identity has its own budget")
}

func TestLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 1, time.Minute)

	ok, err := l.Allow(ctx, "container-a")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Reset(ctx, "container-a"))

	ok, err = l.Allow(ctx, "container-a")
	require.NoError(t, err)
	require.True(t, ok, "reset should restore the budget")
}

func TestLimiter_WindowExpiry(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 1, time.Second)

	ok, err := l.Allow(ctx, "container-a")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = l.Allow(ctx, "container-a")
	require.NoError(t, err)
	require.True(t, ok, "window should have reset")
}

func TestLimiter_Disabled(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 0, time.Minute)

	for i := 0; i < 100; i++ {
		ok, err := l.Allow(ctx, "container-a")
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestLimiter_Remaining(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 5, time.Minute)

	remaining, err := l.Remaining(ctx, "container-a")
	require.NoError(t, err)
	require.Equal(t, 5, remaining)

	_, err = l.Allow(ctx, "container-a")
	require.NoError(t, err)

	remaining, err = l.Remaining(ctx, "container-a")
	require.NoError(t, err)
	require.Equal(t, 4, remaining)
}
