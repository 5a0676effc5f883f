package locker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const delCommand = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`

func NewRedisLocker(client redis.Cmdable, opts Options) Locker {
	return &redisLocker{client: client, opts: opts.normalize()}
}

type redisLocker struct {
	client redis.Cmdable
	opts   Options
}

func (d *redisLocker) Synchronized(ctx context.Context, key string, f func(ctx context.Context) error) error {
	if held(ctx, key) {
		return f(ctx)
	}

	token := newToken()
	deadline := time.Now().Add(d.opts.Wait)
	for {
		locked, err := d.client.SetNX(ctx, key, token, d.opts.TTL).Result()
		if err != nil {
			return errors.WithMessagef(errLockFailed, "[redisLocker.Synchronized] key %s, err: %v", key, err)
		}
		if locked {
			break
		}
		if time.Now().After(deadline) {
			return errors.WithMessagef(errLockFailed, "[redisLocker.Synchronized] key %s has been locked", key)
		}
		select {
		case <-ctx.Done():
			return errors.WithMessagef(ctx.Err(), "[redisLocker.Synchronized] waiting for key %s", key)
		case <-time.After(retryInterval):
		}
	}

	defer d.release(key, token)
	return f(withHeld(ctx, key, token))
}

func (d *redisLocker) release(key, token string) {
	// the caller context may be cancelled already
	reply, err := d.client.Eval(context.Background(), delCommand, []string{key}, token).Int64()
	if err != nil {
		logrus.Warnf("[redisLocker.release] release key %s failed, err: %v", key, err)
		return
	}
	if reply != 1 {
		logrus.Warnf("[redisLocker.release] key %s was not held by token any more", key)
	}
}
