// Package service exposes the ledger operations as in-process calls. Each
// mutation runs under the per-user lock and commits through a single
// store.Apply, so a failed or timed-out call leaves nothing behind.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atmx/wager-ledger/internal/ledger"
	"github.com/atmx/wager-ledger/internal/lock"
	"github.com/atmx/wager-ledger/internal/metrics"
	"github.com/atmx/wager-ledger/internal/model"
	"github.com/atmx/wager-ledger/internal/store"
)

// Options tunes the service. Zero values select the defaults.
type Options struct {
	OperationTimeout    time.Duration
	HistoryDefaultLimit int
	HistoryMaxLimit     int
}

const (
	defaultOperationTimeout = 5 * time.Second
	defaultHistoryLimit     = 10
	maxHistoryLimit         = 100
)

// Service handles the ledger operations of every user.
type Service struct {
	store    store.Store
	locker   lock.Locker
	notifier Notifier
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
}

// NewService creates a Service. A nil locker selects an in-process one; a
// nil notifier or logger disables events or logging.
func NewService(s store.Store, locker lock.Locker, notifier Notifier, logger *zap.Logger, opts Options) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = defaultOperationTimeout
	}
	if opts.HistoryMaxLimit <= 0 {
		opts.HistoryMaxLimit = maxHistoryLimit
	}
	if opts.HistoryDefaultLimit <= 0 {
		opts.HistoryDefaultLimit = defaultHistoryLimit
	}
	if opts.HistoryDefaultLimit > opts.HistoryMaxLimit {
		opts.HistoryDefaultLimit = opts.HistoryMaxLimit
	}

	return &Service{
		store:    s,
		locker:   locker,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// mutate runs fn as one atomic read-modify-write of the user's aggregate.
func (s *Service) mutate(ctx context.Context, op, userID string, fn store.MutateFunc) (agg *model.Aggregate, err error) {
	defer metrics.Observe(op, time.Now(), &err)

	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ledger.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	err = s.locker.WithLock(ctx, lock.Key(userID), func() error {
		var applyErr error
		agg, applyErr = s.store.Apply(ctx, userID, fn)
		return applyErr
	})
	if err != nil {
		return nil, translate(err)
	}
	return agg, nil
}

// read fetches the aggregate without taking the lock.
func (s *Service) read(ctx context.Context, op, userID string) (agg *model.Aggregate, err error) {
	defer metrics.Observe(op, time.Now(), &err)

	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ledger.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	agg, err = s.store.GetAggregate(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return agg, nil
}

// translate maps storage errors onto the ledger taxonomy so callers only
// test against ledger sentinels, lock.ErrNotAcquired and context errors.
func translate(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ledger.ErrNotFound, err)
	case errors.Is(err, store.ErrInvalidCursor):
		return fmt.Errorf("%w: %w", ledger.ErrInvalidArgument, err)
	}
	return err
}
