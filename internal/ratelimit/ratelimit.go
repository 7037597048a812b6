// Package ratelimit guards password-recovery attempts against a container
// with a Redis-backed fixed window, the operational complement to the
// slow PBKDF2 derivation already making guessing expensive: PBKDF2 raises
// the cost of each guess, this package caps how many guesses a given
// container identity gets per window. Grounded in the go-redis
// Get/Set/TTL usage shown by the retrieval pack's frnd1406-NasServer job
// service, generalized from job-result caching to a fixed-window counter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter caps the number of decode attempts allowed for a given container
// identity within a fixed window that starts at the first attempt.
type Limiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
	keyPrefix   string
}

// New constructs a Limiter against an already-connected redis.Client.
// maxAttempts <= 0 disables limiting: Allow always returns true.
func New(client *redis.Client, maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
		keyPrefix:   "rbuvault:attempts:",
	}
}

// Allow increments the attempt counter for identity and reports whether
// the caller is still under the limit. identity is typically a path or a
// hash derived from the container's salt, never the password itself.
func (l *Limiter) Allow(ctx context.Context, identity string) (bool, error) {
	if l.maxAttempts <= 0 {
		return true, nil
	}

	key := l.keyPrefix + identity
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: incrementing %q: %w", key, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: setting expiry on %q: %w", key, err)
		}
	}

	return count <= int64(l.maxAttempts), nil
}

// Ping checks that the backing Redis connection is reachable, for use as a
// readiness dependency check: a container whose decode attempts can't be
// rate-limited should not be advertised as ready to accept decode traffic.
func (l *Limiter) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis ping: %w", err)
	}
	return nil
}

// Reset clears the attempt counter for identity, used after a successful
// decode so a correct password immediately regains a full attempt budget.
func (l *Limiter) Reset(ctx context.Context, identity string) error {
	if err := l.client.Del(ctx, l.keyPrefix+identity).Err(); err != nil {
		return fmt.Errorf("ratelimit: resetting %q: %w", identity, err)
	}
	return nil
}

// Remaining reports how many attempts identity has left in the current
// window, for surfacing in CLI error messages.
func (l *Limiter) Remaining(ctx context.Context, identity string) (int, error) {
	if l.maxAttempts <= 0 {
		return -1, nil
	}

	val, err := l.client.Get(ctx, l.keyPrefix+identity).Result()
	if err == redis.Nil {
		return l.maxAttempts, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ratelimit: reading %q: %w", identity, err)
	}

	var used int
	if _, err := fmt.Sscanf(val, "%d", &used); err != nil {
		return 0, fmt.Errorf("ratelimit: parsing counter for %q: %w", identity, err)
	}

	remaining := l.maxAttempts - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
