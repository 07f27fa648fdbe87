package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/atmx/wager-ledger/internal/ledger"
	"github.com/atmx/wager-ledger/internal/metrics"
	"github.com/atmx/wager-ledger/internal/model"
)

// PlaceWager places one wager per (account, choice) pair. Either every
// wager is placed or none is.
func (s *Service) PlaceWager(ctx context.Context, userID string, in ledger.WagerInput) ([]model.Wager, error) {
	var wagers []model.Wager
	now := s.now()
	agg, err := s.mutate(ctx, "place_wager", userID, func(agg *model.Aggregate) ([]model.HistoryRecord, error) {
		var err error
		wagers, err = ledger.PlaceWager(agg, in, now)
		return nil, err
	})
	if err != nil {
		return nil, err
	}

	for _, w := range wagers {
		choice, _, _ := w.Selection()
		metrics.WagersPlaced.WithLabelValues(string(choice)).Inc()
	}
	s.logger.Info("wagers placed",
		zap.String("user_id", userID),
		zap.String("match", ledger.MatchKey(in.SideA.Label, in.SideB.Label)),
		zap.Int("wagers", len(wagers)),
		zap.Float64("pot", in.Pot),
		zap.Float64("balance_sum_before_bet", agg.BalanceSumBeforeBet),
		zap.Float64("balance_sum_current", agg.BalanceSumCurrent),
	)
	s.publish(userID, EventWagerPlaced, agg)
	return wagers, nil
}

// ListOpenMatches groups the user's open wagers into matches, most
// recently active first. An unknown user has no matches.
func (s *Service) ListOpenMatches(ctx context.Context, userID string) ([]model.Match, error) {
	agg, err := s.read(ctx, "list_open_matches", userID)
	if errors.Is(err, ledger.ErrNotFound) {
		return []model.Match{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ledger.OpenMatches(agg.Accounts), nil
}

// SettleMatch settles every open wager on the match and appends one history
// record per settled wager in the same commit. Malformed wagers are left
// open and listed in the result.
func (s *Service) SettleMatch(ctx context.Context, userID string, in ledger.SettleInput) (*model.SettlementResult, error) {
	var (
		result  *model.SettlementResult
		records []model.HistoryRecord
	)
	now := s.now()
	agg, err := s.mutate(ctx, "settle_match", userID, func(agg *model.Aggregate) ([]model.HistoryRecord, error) {
		var err error
		result, records, err = ledger.SettleMatch(agg, in, now)
		return records, err
	})
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		metrics.Settlements.WithLabelValues(string(r.Outcome)).Inc()
	}
	metrics.SkippedWagers.Add(float64(len(result.Skipped)))
	for _, sk := range result.Skipped {
		s.logger.Warn("wager skipped during settlement",
			zap.String("user_id", userID),
			zap.String("match", in.MatchKey),
			zap.String("account_id", sk.AccountID),
			zap.String("wager_id", sk.WagerID),
			zap.String("reason", sk.Reason),
		)
	}

	s.logger.Info("match settled",
		zap.String("user_id", userID),
		zap.String("match", in.MatchKey),
		zap.String("winning_side", in.WinningSide),
		zap.Bool("push", in.Push),
		zap.Int("settled", result.SettledCount),
		zap.Int("paid", result.PaidCount),
		zap.Float64("total_payout", result.TotalPayout),
		zap.Float64("cycle_profit_or_loss", result.CycleProfitOrLoss),
		zap.Float64("net_profit_or_loss", result.NetProfitOrLoss),
	)
	s.publish(userID, EventMatchSettled, result)
	s.publish(userID, EventAggregateUpdated, agg)
	return result, nil
}

// ResetCycleBookkeeping zeroes the four bookkeeping fields. Balances and
// open wagers are untouched.
func (s *Service) ResetCycleBookkeeping(ctx context.Context, userID string) (*model.Aggregate, error) {
	agg, err := s.mutate(ctx, "reset_bookkeeping", userID, func(agg *model.Aggregate) ([]model.HistoryRecord, error) {
		ledger.ResetCycleBookkeeping(agg)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cycle bookkeeping reset", zap.String("user_id", userID))
	s.publish(userID, EventAggregateUpdated, agg)
	return agg, nil
}
