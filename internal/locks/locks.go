// Package locks serializes work per key. Booking writes take the lock for
// their event before opening a database transaction.
package locks

import (
	"context"
	"errors"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// Release gives the lock back. Calling it more than once is a no-op.
type Release func()

type Locker interface {
	Lock(ctx context.Context, key string) (Release, error)
}

// EventKey is the lock key used for every write touching an event's tickets.
func EventKey(eventID string) string {
	return "event:" + eventID
}

// Noop satisfies Locker without serializing anything. Correctness then rests
// on the database row lock alone.
type Noop struct{}

func (Noop) Lock(context.Context, string) (Release, error) {
	return func() {}, nil
}

// Chain acquires every locker in order and releases them in reverse.
type Chain []Locker

func (c Chain) Lock(ctx context.Context, key string) (Release, error) {
	held := make([]Release, 0, len(c))
	for _, l := range c {
		release, err := l.Lock(ctx, key)
		if err != nil {
			for i := len(held) - 1; i >= 0; i-- {
				held[i]()
			}
			return nil, err
		}
		held = append(held, release)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}, nil
}
