package locks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/logger"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Second, 50*time.Millisecond, 5*time.Millisecond, logger.Discard())
	ctx := context.Background()

	release, err := locker.Lock(ctx, EventKey("e1"))
	require.NoError(t, err)
	assert.True(t, mr.Exists("booking_lock:event:e1"))

	_, err = locker.Lock(ctx, EventKey("e1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockTimeout))

	release()
	assert.False(t, mr.Exists("booking_lock:event:e1"))

	release, err = locker.Lock(ctx, EventKey("e1"))
	require.NoError(t, err)
	release()
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Second, 10*time.Millisecond, 5*time.Millisecond, logger.Discard())

	release, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("booking_lock:k", "someone-else"))

	release()
	got, err := mr.Get("booking_lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	client, _ := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Second, time.Second, 5*time.Millisecond, logger.Discard())
	ctx := context.Background()

	release, err := locker.Lock(ctx, "k")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	second, err := locker.Lock(ctx, "k")
	require.NoError(t, err)
	second()
}
