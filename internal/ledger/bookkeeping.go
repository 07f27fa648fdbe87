package ledger

import "github.com/atmx/wager-ledger/internal/model"

// SumBalances returns Σ balance over accounts.
func SumBalances(accounts []model.Account) float64 {
	var sum float64
	for _, acc := range accounts {
		sum += acc.Balance
	}
	return sum
}

// CloseCycle records the end of a settlement cycle:
//
//	after = Σ balances
//	cycle = after - BalanceSumBeforeBet
//	net  += cycle
//
// BalanceSumBeforeBet is whatever the most recent placement captured, so
// several placements between settlements all measure from the last one.
func CloseCycle(agg *model.Aggregate) {
	after := RecomputeBalanceSum(agg)
	agg.BalanceSumAfterSettlement = after
	agg.CycleProfitOrLoss = after - agg.BalanceSumBeforeBet
	agg.NetProfitOrLoss += agg.CycleProfitOrLoss
}

// ResetCycleBookkeeping zeroes the cycle and running profit fields and both
// snapshots. Balances and open wagers are not touched.
func ResetCycleBookkeeping(agg *model.Aggregate) {
	agg.CycleProfitOrLoss = 0
	agg.NetProfitOrLoss = 0
	agg.BalanceSumBeforeBet = 0
	agg.BalanceSumAfterSettlement = 0
}
