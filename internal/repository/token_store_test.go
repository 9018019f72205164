package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNetError satisfies net.Error and stands in for a dropped
// connection.
type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection reset" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRecoversFromTransientErrors(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return fakeNetError{}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return fakeNetError{}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	boom := errors.New("WRONGTYPE operation")
	err := withRetry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetryBacksOffExponentially(t *testing.T) {
	base := 10 * time.Millisecond
	calls := 0
	start := time.Now()
	err := withRetry(context.Background(), 3, base, func() error {
		calls++
		return fakeNetError{}
	})
	elapsed := time.Since(start)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// Sleeps base then 2*base between the three attempts.
	assert.GreaterOrEqual(t, elapsed, 3*base)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := withRetry(ctx, 5, time.Hour, func() error {
		calls++
		return fakeNetError{}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(errors.New("command error")))
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(context.DeadlineExceeded))
	assert.True(t, isTransient(redis.ErrClosed))
	assert.True(t, isTransient(fakeNetError{}))
}
