package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atmx/wager-ledger/internal/ledger"
	"github.com/atmx/wager-ledger/internal/metrics"
	"github.com/atmx/wager-ledger/internal/model"
	"github.com/atmx/wager-ledger/internal/store"
)

// Profile is the identity-provider data copied onto a new aggregate.
type Profile struct {
	Name  string
	Email string
	Image string
}

// SyncUser returns the user's aggregate, creating an empty one on first
// sight. created reports whether this call created it. An existing
// aggregate is returned untouched.
func (s *Service) SyncUser(ctx context.Context, userID string, p Profile) (agg *model.Aggregate, created bool, err error) {
	defer metrics.Observe("sync_user", time.Now(), &err)

	if userID == "" {
		return nil, false, fmt.Errorf("%w: user id is required", ledger.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	agg, err = s.store.GetAggregate(ctx, userID)
	if err == nil {
		return agg, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	now := s.now()
	agg = &model.Aggregate{
		UserID:    userID,
		Name:      p.Name,
		Email:     p.Email,
		Image:     p.Image,
		Accounts:  []model.Account{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.store.CreateAggregate(ctx, agg); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with a concurrent first request.
			agg, err = s.store.GetAggregate(ctx, userID)
			return agg, false, translate(err)
		}
		return nil, false, err
	}

	s.logger.Info("user aggregate created", zap.String("user_id", userID))
	return agg, true, nil
}

// GetAggregate returns the user's aggregate.
func (s *Service) GetAggregate(ctx context.Context, userID string) (*model.Aggregate, error) {
	return s.read(ctx, "get_aggregate", userID)
}

// ListAccounts returns the user's accounts in order. An unknown user has
// no accounts.
func (s *Service) ListAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	agg, err := s.read(ctx, "list_accounts", userID)
	if errors.Is(err, ledger.ErrNotFound) {
		return []model.Account{}, nil
	}
	if err != nil {
		return nil, err
	}
	return agg.Accounts, nil
}

// CreateAccount adds an account to the user's aggregate and returns it
// with its generated id.
func (s *Service) CreateAccount(ctx context.Context, userID string, in ledger.AccountInput) (model.Account, error) {
	var acc model.Account
	agg, err := s.mutate(ctx, "create_account", userID, func(agg *model.Aggregate) ([]model.HistoryRecord, error) {
		var err error
		acc, err = ledger.CreateAccount(agg, in)
		return nil, err
	})
	if err != nil {
		return model.Account{}, err
	}

	s.logger.Info("account created",
		zap.String("user_id", userID),
		zap.String("account_id", acc.ID),
		zap.Float64("balance", acc.Balance),
	)
	s.publish(userID, EventAggregateUpdated, agg)
	return acc, nil
}

// UpdateAccount replaces the account's profile fields and balance.
func (s *Service) UpdateAccount(ctx context.Context, userID, accountID string, in ledger.AccountInput) (model.Account, error) {
	var acc model.Account
	agg, err := s.mutate(ctx, "update_account", userID, func(agg *model.Aggregate) ([]model.HistoryRecord, error) {
		var err error
		acc, err = ledger.UpdateAccount(agg, accountID, in)
		return nil, err
	})
	if err != nil {
		return model.Account{}, err
	}

	s.logger.Info("account updated",
		zap.String("user_id", userID),
		zap.String("account_id", accountID),
		zap.Float64("balance", acc.Balance),
	)
	s.publish(userID, EventAggregateUpdated, agg)
	return acc, nil
}

// DeleteAccount removes the account and returns how many open wagers were
// discarded with it.
func (s *Service) DeleteAccount(ctx context.Context, userID, accountID string) (int, error) {
	var discarded int
	agg, err := s.mutate(ctx, "delete_account", userID, func(agg *model.Aggregate) ([]model.HistoryRecord, error) {
		var err error
		discarded, err = ledger.DeleteAccount(agg, accountID)
		return nil, err
	})
	if err != nil {
		return 0, err
	}

	if discarded > 0 {
		s.logger.Warn("account deleted with open wagers",
			zap.String("user_id", userID),
			zap.String("account_id", accountID),
			zap.Int("discarded_wagers", discarded),
		)
	} else {
		s.logger.Info("account deleted",
			zap.String("user_id", userID),
			zap.String("account_id", accountID),
		)
	}
	s.publish(userID, EventAggregateUpdated, agg)
	return discarded, nil
}

// AdjustBalance deposits or withdraws amount. A withdrawal that would take
// the balance below zero fails with ledger.ErrInsufficientFunds.
func (s *Service) AdjustBalance(ctx context.Context, userID, accountID string, amount float64, dir ledger.Direction) (model.Account, error) {
	var acc model.Account
	agg, err := s.mutate(ctx, "adjust_balance", userID, func(agg *model.Aggregate) ([]model.HistoryRecord, error) {
		var err error
		acc, err = ledger.AdjustBalance(agg, accountID, amount, dir)
		return nil, err
	})
	if err != nil {
		return model.Account{}, err
	}

	s.logger.Info("balance adjusted",
		zap.String("user_id", userID),
		zap.String("account_id", accountID),
		zap.String("direction", string(dir)),
		zap.Float64("amount", amount),
		zap.Float64("balance", acc.Balance),
	)
	s.publish(userID, EventAggregateUpdated, agg)
	return acc, nil
}
