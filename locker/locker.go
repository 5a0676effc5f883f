package locker

import (
	"context"
	"time"

	"backoffice/bizerror"

	"github.com/google/uuid"
)

// Locker runs f while holding the lock named key. Acquisition waits up to the configured duration and then
// fails with bizerror.ErrLocked. A context already holding key re-enters without waiting.
type Locker interface {
	Synchronized(ctx context.Context, key string, f func(ctx context.Context) error) error
}

type Options struct {
	// Wait bounds how long acquisition may block.
	Wait time.Duration
	// TTL bounds how long a lock may be held before it is released automatically.
	TTL time.Duration
}

const (
	defaultWait   = 5 * time.Second
	defaultTTL    = 30 * time.Second
	retryInterval = 20 * time.Millisecond
)

func (o Options) normalize() Options {
	if o.Wait <= 0 {
		o.Wait = defaultWait
	}
	if o.TTL <= 0 {
		o.TTL = defaultTTL
	}
	return o
}

type lockKey string

func held(ctx context.Context, key string) bool {
	_, ok := ctx.Value(lockKey(key)).(string)
	return ok
}

func withHeld(ctx context.Context, key, token string) context.Context {
	return context.WithValue(ctx, lockKey(key), token)
}

func newToken() string {
	return uuid.New().String()
}

var errLockFailed = bizerror.ErrLocked
