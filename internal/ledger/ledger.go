// Package ledger implements the settlement engine of the wager ledger:
// account bookkeeping, stake reservation on placement, grouping of open
// wagers into matches, and payout computation on settlement.
//
// Every function here is pure with respect to I/O. It mutates the
// *model.Aggregate it is handed and returns what the caller must persist
// (history records). Inputs are fully validated before the first mutation,
// so an error always leaves the aggregate untouched.
package ledger

import (
	"errors"

	"github.com/atmx/wager-ledger/internal/model"
)

var (
	// ErrNotFound is returned when an aggregate or account id is absent.
	ErrNotFound = errors.New("ledger: not found")

	// ErrInvalidArgument is returned for malformed or mismatched input.
	ErrInvalidArgument = errors.New("ledger: invalid argument")

	// ErrInsufficientFunds is returned when a withdrawal would drive a
	// balance below zero.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrCorruptWager marks an open wager that does not carry exactly one
	// selected side. It is reported through SettlementResult.Skipped and
	// never returned from an operation.
	ErrCorruptWager = errors.New("ledger: corrupt wager")
)

// RecomputeBalanceSum refreshes the cached sum of all account balances.
// Every mutating operation calls it last.
func RecomputeBalanceSum(agg *model.Aggregate) float64 {
	agg.BalanceSumCurrent = SumBalances(agg.Accounts)
	return agg.BalanceSumCurrent
}

// findAccount returns the index of the account with the given id, or -1.
func findAccount(agg *model.Aggregate, accountID string) int {
	for i := range agg.Accounts {
		if agg.Accounts[i].ID == accountID {
			return i
		}
	}
	return -1
}
