package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore records tokens that must be treated as invalid before
// their natural expiry (logout, refresh rotation, password change).
// Entries carry a TTL equal to the token's remaining lifetime and
// expire on their own; nothing ever deletes them explicitly.
type TokenStore interface {
	// Put records token as revoked for ttl.  The owning user id is kept
	// as the value for auditing.
	Put(ctx context.Context, token string, userID uint64, ttl time.Duration) error
	// Contains reports whether token has been revoked.
	Contains(ctx context.Context, token string) (bool, error)
}

// RedisTokenStore implements TokenStore on a shared Redis instance so
// revocation is visible across horizontally scaled replicas.  Transient
// connection failures are retried with exponential backoff before a
// fatal error surfaces: a revocation that silently fails would leave a
// dead session's token usable.
type RedisTokenStore struct {
	client *redis.Client

	attempts int
	backoff  time.Duration
}

const (
	revokeAttempts = 5
	revokeBackoff  = 100 * time.Millisecond
)

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client, attempts: revokeAttempts, backoff: revokeBackoff}
}

// Put stores the token under its own key with the remaining lifetime as
// TTL.  A non-positive ttl is clamped to one second: Redis treats zero
// expiry as "keep forever" and an expired token still needs to fail
// verification until the denylist entry would have lapsed.
func (s *RedisTokenStore) Put(ctx context.Context, token string, userID uint64, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	err := withRetry(ctx, s.attempts, s.backoff, func() error {
		return s.client.Set(ctx, token, strconv.FormatUint(userID, 10), ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("%w: revoke token: %v", ErrInternal, err)
	}
	return nil
}

// Contains checks token existence with the same retry policy as Put.
func (s *RedisTokenStore) Contains(ctx context.Context, token string) (bool, error) {
	var n int64
	err := withRetry(ctx, s.attempts, s.backoff, func() error {
		var inner error
		n, inner = s.client.Exists(ctx, token).Result()
		return inner
	})
	if err != nil {
		return false, fmt.Errorf("%w: check token: %v", ErrInternal, err)
	}
	return n > 0, nil
}

// withRetry runs fn up to attempts times, sleeping base, 2*base,
// 4*base, ... between tries.  Only transient errors are retried;
// anything else aborts immediately.  The context cancels the wait.
func withRetry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var err error
	delay := base
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
	}
	return err
}

// isTransient reports whether err looks like a connection-level failure
// worth retrying, as opposed to a command error.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, redis.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
