package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker. Expired locks are reclaimed on the next Obtain.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]*localLock
	wait  time.Duration
	retry time.Duration
	now   func() time.Time
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		held:  make(map[string]*localLock),
		wait:  wait,
		retry: 5 * time.Millisecond,
		now:   time.Now,
	}
}

type localLock struct {
	locker   *LocalLocker
	key      string
	expireAt time.Time
	released bool
}

func (l *LocalLocker) tryObtain(key string, ttl time.Duration) *localLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expireAt) {
		return nil
	}
	lk := &localLock{locker: l, key: key, expireAt: now.Add(ttl)}
	l.held[key] = lk
	return lk
}

func (l *LocalLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	for {
		if lk := l.tryObtain(key, ttl); lk != nil {
			return lk, nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrNotAcquired
		case <-time.After(l.retry):
		}
	}
}

func (ll *localLock) Release(_ context.Context) error {
	l := ll.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	if ll.released || l.held[ll.key] != ll {
		return ErrNotHeld
	}
	ll.released = true
	delete(l.held, ll.key)
	return nil
}
