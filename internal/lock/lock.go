// Package lock serializes mutations of one user aggregate across goroutines
// (LocalLocker) or across processes sharing a Redis (RedisLocker).
// Waiting is bounded by the caller's context.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// context expired or the retry budget ran out.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker runs fn while holding the lock named key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

// Key returns the lock name for a user aggregate.
func Key(userID string) string { return "lock:aggregate:" + userID }

// LocalLocker is an in-process Locker. Each key maps to a one-slot channel
// so waiting honours context cancellation. A key's slot lives only while
// some caller holds or waits for it.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) acquire(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	s := l.acquire(key)
	defer l.release(key, s)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}
	defer func() { <-s.ch }()

	return fn()
}
