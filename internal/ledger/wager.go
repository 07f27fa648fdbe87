package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/wager-ledger/internal/model"
)

// WagerInput describes one placement split across several accounts.
// AccountIDs[i] backs Choices[i].
type WagerInput struct {
	AccountIDs []string
	Choices    []model.Choice
	SideA      model.Side
	SideB      model.Side
	Pot        float64
}

func (in WagerInput) validate() error {
	if len(in.AccountIDs) == 0 {
		return fmt.Errorf("%w: at least one account is required", ErrInvalidArgument)
	}
	if len(in.AccountIDs) != len(in.Choices) {
		return fmt.Errorf("%w: %d accounts but %d side choices",
			ErrInvalidArgument, len(in.AccountIDs), len(in.Choices))
	}
	for i, c := range in.Choices {
		if !c.Valid() {
			return fmt.Errorf("%w: choice %d is %q, want A or B", ErrInvalidArgument, i, c)
		}
	}
	if in.SideA.Label == "" || in.SideB.Label == "" {
		return fmt.Errorf("%w: both side labels are required", ErrInvalidArgument)
	}
	if in.SideA.Label == in.SideB.Label {
		return fmt.Errorf("%w: side labels must differ", ErrInvalidArgument)
	}
	if !finite(in.SideA.PayoutOdds) || in.SideA.PayoutOdds <= 0 ||
		!finite(in.SideB.PayoutOdds) || in.SideB.PayoutOdds <= 0 {
		return fmt.Errorf("%w: odds must be positive", ErrInvalidArgument)
	}
	if !finite(in.Pot) || in.Pot <= 0 {
		return fmt.Errorf("%w: pot must be positive", ErrInvalidArgument)
	}
	return nil
}

// Stake returns the amount reserved for backing a side at the given odds.
func Stake(pot, odds float64) float64 {
	return pot / odds
}

// NewWager builds an open wager backing choice. The side not backed has its
// odds zeroed; that zero is the persisted record of the selection.
func NewWager(sideA, sideB model.Side, choice model.Choice, pot float64, placedAt time.Time) model.Wager {
	w := model.Wager{
		ID:       uuid.New().String(),
		SideA:    sideA,
		SideB:    sideB,
		Pot:      pot,
		PlacedAt: placedAt,
	}
	if choice == model.ChoiceA {
		w.Stake = Stake(pot, sideA.PayoutOdds)
		w.SideB.PayoutOdds = 0
	} else {
		w.Stake = Stake(pot, sideB.PayoutOdds)
		w.SideA.PayoutOdds = 0
	}
	return w
}

// PlaceWager attaches one wager per (account, choice) pair and debits each
// stake from its account. Balances are not checked: a placement may drive an
// account negative. The pre-placement balance sum is snapshotted into
// BalanceSumBeforeBet, overwriting any earlier snapshot.
//
// Every account id is resolved before anything is mutated, so a missing
// account leaves the aggregate untouched.
func PlaceWager(agg *model.Aggregate, in WagerInput, now time.Time) ([]model.Wager, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	idx := make([]int, len(in.AccountIDs))
	for i, id := range in.AccountIDs {
		idx[i] = findAccount(agg, id)
		if idx[i] < 0 {
			return nil, fmt.Errorf("%w: account %s", ErrNotFound, id)
		}
	}

	agg.BalanceSumBeforeBet = RecomputeBalanceSum(agg)

	placed := make([]model.Wager, 0, len(idx))
	for i, ai := range idx {
		w := NewWager(in.SideA, in.SideB, in.Choices[i], in.Pot, now)
		acc := &agg.Accounts[ai]
		acc.OpenWagers = append(acc.OpenWagers, w)
		acc.Balance -= w.Stake
		placed = append(placed, w)
	}

	RecomputeBalanceSum(agg)
	return placed, nil
}
