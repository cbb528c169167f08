package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-booking/internal/logger"
)

// Deletes the key only if it still holds our token, so an expired lock that
// someone else re-acquired is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker extends the per-event lock across service instances.
type RedisLocker struct {
	Client        redis.Cmdable
	Prefix        string
	TTL           time.Duration
	Wait          time.Duration
	RetryInterval time.Duration
	Logger        *logger.Logger
}

func NewRedisLocker(client redis.Cmdable, ttl, wait, retry time.Duration, log *logger.Logger) *RedisLocker {
	return &RedisLocker{
		Client:        client,
		Prefix:        "booking_lock:",
		TTL:           ttl,
		Wait:          wait,
		RetryInterval: retry,
		Logger:        log,
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (Release, error) {
	fullKey := r.Prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.Wait)

	for {
		ok, err := r.Client.SetNX(ctx, fullKey, token, r.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", fullKey, err)
		}
		if ok {
			return r.releaser(fullKey, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, fullKey)
		}

		timer := time.NewTimer(r.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("lock %s: %w", fullKey, ctx.Err())
		case <-timer.C:
		}
	}
}

func (r *RedisLocker) releaser(fullKey, token string) Release {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, r.Client, []string{fullKey}, token).Err(); err != nil && err != redis.Nil {
			if r.Logger != nil {
				r.Logger.Warn("REDIS", fmt.Sprintf("release %s: %v", fullKey, err))
			}
		}
	}
}
