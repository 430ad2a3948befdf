package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/osd-exam/backend-registration/internal/lock"
)

func newTestLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockSerializesHolders(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	const key = "catalog:snapshot:refresh"
	inside := make(chan struct{})
	proceed := make(chan struct{})
	firstErr := make(chan error, 1)
	secondRan := make(chan error, 1)

	go func() {
		firstErr <- locker.WithLock(ctx, key, time.Second, func(context.Context) error {
			close(inside)
			<-proceed
			return nil
		})
	}()

	<-inside
	go func() {
		secondRan <- locker.WithLock(ctx, key, time.Second, func(context.Context) error {
			return nil
		})
	}()

	// The second holder must block until the first releases.
	select {
	case err := <-secondRan:
		t.Fatalf("second holder entered while lock was held: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	close(proceed)
	require.NoError(t, <-firstErr)
	require.NoError(t, <-secondRan)
}

func TestWithLockReleasesAfterCallbackError(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	boom := errors.New("refresh failed")
	err := locker.WithLock(ctx, "catalog:snapshot:refresh", time.Second, func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("catalog:snapshot:refresh"), "lock key must be released on failure")
}

func TestWithLockGivesUpOnCancelledContext(t *testing.T) {
	locker, _ := newTestLocker(t)

	held, cancelHeld := context.WithCancel(context.Background())
	defer cancelHeld()
	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- locker.WithLock(held, "workflow:dispatch", time.Second, func(context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	waiter, cancelWaiter := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancelWaiter()
	err := locker.WithLock(waiter, "workflow:dispatch", time.Second, func(context.Context) error {
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
}
