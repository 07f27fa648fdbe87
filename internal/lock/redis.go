package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options tunes the distributed mutex.
type Options struct {
	// Expiry is how long the lock is held before it auto-expires.
	Expiry time.Duration
	// Tries is the number of acquisition attempts before giving up.
	Tries int
	// RetryDelay is the wait between attempts.
	RetryDelay time.Duration
}

// DefaultOptions returns the settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		Expiry:     10 * time.Second,
		Tries:      32,
		RetryDelay: 100 * time.Millisecond,
	}
}

// RedisLocker is a Locker backed by a redsync mutex, so every process
// sharing the Redis instance takes turns on the same aggregate.
type RedisLocker struct {
	rs     *redsync.Redsync
	opts   Options
	logger *zap.Logger
}

// NewRedisLocker creates a distributed locker over an existing client.
func NewRedisLocker(client *redis.Client, opts Options, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = def.Expiry
	}
	if opts.Tries <= 0 {
		opts.Tries = def.Tries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}

	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger,
	}
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	mutex := l.rs.NewMutex(
		key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if contended(err) || ctx.Err() != nil {
			return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, err)
		}
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}

	defer func() {
		// Release on a fresh context: the caller's may already be done.
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			l.logger.Warn("release lock failed",
				zap.String("key", key), zap.Bool("ok", ok), zap.Error(err))
		}
	}()

	return fn()
}

// contended reports whether err means another holder has the lock, as
// opposed to Redis being unreachable.
func contended(err error) bool {
	msg := err.Error()
	return errors.Is(err, redsync.ErrFailed) ||
		strings.Contains(msg, "lock already taken") ||
		strings.Contains(msg, "failed to acquire lock")
}
