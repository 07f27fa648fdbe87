package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/wager-ledger/internal/model"
)

// SettleInput describes the outcome of one match.
type SettleInput struct {
	MatchKey    string
	WinningSide string
	// Push pays the losing side as if it had won.
	Push bool
	// Cashouts maps account id to a fixed payout that replaces the
	// win/lose computation for every matched wager on that account.
	Cashouts map[string]float64
}

// Payout computes what a settled wager returns and how it was decided.
// Cashout takes precedence over the winner check, which takes precedence
// over push.
func Payout(stake float64, selected model.Side, winningSide string, push bool, cashout float64, cashedOut bool) (float64, model.Outcome) {
	switch {
	case cashedOut:
		return cashout, model.OutcomeCashout
	case selected.Label == winningSide:
		return stake * selected.PayoutOdds, model.OutcomeWon
	case push:
		return stake * selected.PayoutOdds, model.OutcomePush
	}
	return 0, model.OutcomeLost
}

// SettleMatch settles every open wager on the match's pair of labels across
// all accounts: payouts are credited, one history record is produced per
// settled wager and the wager leaves the open set. Wagers that do not carry
// exactly one selected side are skipped, stay open and are reported in
// the result.
//
// The winning side is not checked against the pair: a label outside it
// settles every wager as lost, or as push when Push is set. A zero cashout
// is a valid override that pays nothing.
//
// Every call closes the cycle afterwards, even when nothing settled:
// BalanceSumAfterSettlement is recomputed, CycleProfitOrLoss is measured
// against the last placement snapshot and added to NetProfitOrLoss.
func SettleMatch(agg *model.Aggregate, in SettleInput, now time.Time) (*model.SettlementResult, []model.HistoryRecord, error) {
	teamA, teamB, err := ParseMatchKey(in.MatchKey)
	if err != nil {
		return nil, nil, err
	}
	for accountID, amount := range in.Cashouts {
		if !finite(amount) || amount < 0 {
			return nil, nil, fmt.Errorf("%w: cashout for account %s must be a finite non-negative amount",
				ErrInvalidArgument, accountID)
		}
	}

	result := &model.SettlementResult{
		MatchKey:    in.MatchKey,
		WinningSide: in.WinningSide,
		Skipped:     []model.SkippedWager{},
	}
	var records []model.HistoryRecord

	for i := range agg.Accounts {
		acc := &agg.Accounts[i]
		cashout, cashedOut := in.Cashouts[acc.ID]
		remaining := make([]model.Wager, 0, len(acc.OpenWagers))

		for _, w := range acc.OpenWagers {
			if !w.OnPair(teamA, teamB) {
				remaining = append(remaining, w)
				continue
			}
			_, selected, ok := w.Selection()
			if !ok {
				remaining = append(remaining, w)
				result.Skipped = append(result.Skipped, model.SkippedWager{
					AccountID: acc.ID,
					WagerID:   w.ID,
					Reason:    ErrCorruptWager.Error(),
				})
				continue
			}

			payout, outcome := Payout(w.Stake, selected, in.WinningSide, in.Push, cashout, cashedOut)
			before := acc.Balance
			if payout > 0 {
				acc.Balance += payout
				result.PaidCount++
				result.TotalPayout += payout
			}

			records = append(records, model.HistoryRecord{
				ID:                      uuid.New().String(),
				UserID:                  agg.UserID,
				AccountID:               acc.ID,
				AccountEmail:            acc.Email,
				SideA:                   w.SideA,
				SideB:                   w.SideB,
				Pot:                     w.Pot,
				Stake:                   w.Stake,
				PlacedAt:                w.PlacedAt,
				SettledAt:               now,
				WinningSide:             in.WinningSide,
				Outcome:                 outcome,
				Payout:                  payout,
				Profit:                  payout - w.Stake,
				BalanceBeforeSettlement: before,
				BalanceAfterSettlement:  acc.Balance,
			})
			result.SettledCount++
		}
		acc.OpenWagers = remaining
	}

	CloseCycle(agg)
	result.CycleProfitOrLoss = agg.CycleProfitOrLoss
	result.NetProfitOrLoss = agg.NetProfitOrLoss
	return result, records, nil
}
