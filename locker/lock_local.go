package locker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func NewLocalLocker(opts Options) Locker {
	return &localLocker{opts: opts.normalize(), locks: map[string]*localLockInfo{}}
}

type localLocker struct {
	opts Options

	mu    sync.Mutex
	locks map[string]*localLockInfo
}

type localLockInfo struct {
	sem     chan struct{}
	token   string
	timer   *time.Timer
	waiters int
}

func (l *localLocker) Synchronized(ctx context.Context, key string, f func(ctx context.Context) error) error {
	if held(ctx, key) {
		return f(ctx)
	}

	info := l.acquireInfo(key)
	defer l.releaseInfo(key, info)

	wait := time.NewTimer(l.opts.Wait)
	defer wait.Stop()
	select {
	case info.sem <- struct{}{}:
	case <-wait.C:
		return errors.WithMessagef(errLockFailed, "[localLocker.Synchronized] key %s has been locked", key)
	case <-ctx.Done():
		return errors.WithMessagef(ctx.Err(), "[localLocker.Synchronized] waiting for key %s", key)
	}

	token := newToken()
	l.mu.Lock()
	info.token = token
	info.timer = time.AfterFunc(l.opts.TTL, func() {
		logrus.Warnf("[localLocker] lock %s expired", key)
		l.unlock(info, token)
	})
	l.mu.Unlock()

	defer l.unlock(info, token)
	return f(withHeld(ctx, key, token))
}

func (l *localLocker) acquireInfo(key string) *localLockInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	info, ok := l.locks[key]
	if !ok {
		info = &localLockInfo{sem: make(chan struct{}, 1)}
		l.locks[key] = info
	}
	info.waiters++
	return info
}

func (l *localLocker) releaseInfo(key string, info *localLockInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	info.waiters--
	if info.waiters == 0 {
		delete(l.locks, key)
	}
}

// unlock releases the lock only when token still owns it.
func (l *localLocker) unlock(info *localLockInfo, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if info.token != token {
		return
	}
	info.token = ""
	if info.timer != nil {
		info.timer.Stop()
		info.timer = nil
	}
	<-info.sem
}
