package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atmx/wager-ledger/internal/ledger"
	"github.com/atmx/wager-ledger/internal/lock"
	"github.com/atmx/wager-ledger/internal/metrics"
	"github.com/atmx/wager-ledger/internal/model"
)

// HistoryPage is one page of settled wagers, newest first. NextCursor is
// empty on the last page.
type HistoryPage struct {
	Records    []model.HistoryRecord `json:"records"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// ListHistory returns up to limit records after cursor. A non-positive
// limit selects the default; larger limits are capped.
func (s *Service) ListHistory(ctx context.Context, userID string, limit int, cursor string) (page *HistoryPage, err error) {
	defer metrics.Observe("list_history", time.Now(), &err)

	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ledger.ErrInvalidArgument)
	}
	switch {
	case limit <= 0:
		limit = s.opts.HistoryDefaultLimit
	case limit > s.opts.HistoryMaxLimit:
		limit = s.opts.HistoryMaxLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	records, next, err := s.store.ListHistory(ctx, userID, limit, cursor)
	if err != nil {
		return nil, translate(err)
	}
	return &HistoryPage{Records: records, NextCursor: next}, nil
}

// PurgeHistory deletes all of the user's history and returns the count.
// Accounts, balances and open wagers are untouched.
func (s *Service) PurgeHistory(ctx context.Context, userID string) (n int, err error) {
	defer metrics.Observe("purge_history", time.Now(), &err)

	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", ledger.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	// Serialized with settlements so a purge never splits one.
	err = s.locker.WithLock(ctx, lock.Key(userID), func() error {
		if _, err := s.store.GetAggregate(ctx, userID); err != nil {
			return err
		}
		var purgeErr error
		n, purgeErr = s.store.PurgeHistory(ctx, userID)
		return purgeErr
	})
	if err != nil {
		return 0, translate(err)
	}

	s.logger.Info("history purged", zap.String("user_id", userID), zap.Int("deleted", n))
	s.publish(userID, EventHistoryPurged, map[string]int{"deleted": n})
	return n, nil
}
