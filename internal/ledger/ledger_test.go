package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/atmx/wager-ledger/internal/model"
)

var t0 = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// newAggregate builds an aggregate with one account per balance.
func newAggregate(t *testing.T, balances ...float64) *model.Aggregate {
	t.Helper()
	agg := &model.Aggregate{UserID: "user1"}
	for _, b := range balances {
		if _, err := CreateAccount(agg, AccountInput{
			Email:        "acc@example.com",
			Phone:        "555-0100",
			GovernmentID: "GOV-1",
			Balance:      b,
		}); err != nil {
			t.Fatalf("create account: %v", err)
		}
	}
	return agg
}

func indiaAustralia(choices ...model.Choice) WagerInput {
	return WagerInput{
		Choices: choices,
		SideA:   model.Side{Label: "India", PayoutOdds: 2.0},
		SideB:   model.Side{Label: "Australia", PayoutOdds: 4.0},
		Pot:     1000,
	}
}

func ids(agg *model.Aggregate) []string {
	out := make([]string, len(agg.Accounts))
	for i, a := range agg.Accounts {
		out[i] = a.ID
	}
	return out
}

// --- Account ledger ---

func TestCreateAccount_AppendsAndSums(t *testing.T) {
	agg := newAggregate(t, 1000, 250.5)

	if len(agg.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(agg.Accounts))
	}
	if agg.Accounts[0].ID == agg.Accounts[1].ID {
		t.Error("account ids should be unique")
	}
	if agg.Accounts[0].OpenWagers == nil || len(agg.Accounts[0].OpenWagers) != 0 {
		t.Error("new account should have an empty wager list")
	}
	if !approx(agg.BalanceSumCurrent, 1250.5) {
		t.Errorf("expected balance sum 1250.5, got %v", agg.BalanceSumCurrent)
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   AccountInput
	}{
		{"missing email", AccountInput{Phone: "1", GovernmentID: "g"}},
		{"missing phone", AccountInput{Email: "e", GovernmentID: "g"}},
		{"missing government id", AccountInput{Email: "e", Phone: "1"}},
		{"negative balance", AccountInput{Email: "e", Phone: "1", GovernmentID: "g", Balance: -1}},
		{"NaN balance", AccountInput{Email: "e", Phone: "1", GovernmentID: "g", Balance: math.NaN()}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			agg := &model.Aggregate{}
			_, err := CreateAccount(agg, tc.in)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if len(agg.Accounts) != 0 {
				t.Error("no account should be appended on failure")
			}
		})
	}
}

func TestUpdateAccount_ReplacesFieldsKeepsWagers(t *testing.T) {
	agg := newAggregate(t, 1000)
	id := agg.Accounts[0].ID
	if _, err := PlaceWager(agg, WagerInput{
		AccountIDs: []string{id},
		Choices:    []model.Choice{model.ChoiceA},
		SideA:      model.Side{Label: "X", PayoutOdds: 2},
		SideB:      model.Side{Label: "Y", PayoutOdds: 2},
		Pot:        100,
	}, t0); err != nil {
		t.Fatalf("place: %v", err)
	}

	acc, err := UpdateAccount(agg, id, AccountInput{
		Email: "new@example.com", Phone: "2", GovernmentID: "G2", Username: "neo", Balance: 42,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.Email != "new@example.com" || acc.Username != "neo" || acc.Balance != 42 {
		t.Errorf("fields not replaced: %+v", acc)
	}
	if len(agg.Accounts[0].OpenWagers) != 1 {
		t.Error("open wagers should survive an update")
	}
	if agg.BalanceSumCurrent != 42 {
		t.Errorf("expected balance sum 42, got %v", agg.BalanceSumCurrent)
	}
}

func TestUpdateAccount_NotFound(t *testing.T) {
	agg := newAggregate(t, 10)
	_, err := UpdateAccount(agg, "missing", AccountInput{Email: "e", Phone: "1", GovernmentID: "g"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteAccount_DiscardsOpenWagers(t *testing.T) {
	agg := newAggregate(t, 1000, 500)
	in := indiaAustralia(model.ChoiceA)
	in.AccountIDs = []string{agg.Accounts[0].ID}
	if _, err := PlaceWager(agg, in, t0); err != nil {
		t.Fatalf("place: %v", err)
	}

	discarded, err := DeleteAccount(agg, agg.Accounts[0].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discarded != 1 {
		t.Errorf("expected 1 discarded wager, got %d", discarded)
	}
	if len(agg.Accounts) != 1 || agg.BalanceSumCurrent != 500 {
		t.Errorf("expected one account summing to 500, got %d accounts / %v",
			len(agg.Accounts), agg.BalanceSumCurrent)
	}

	if _, err := DeleteAccount(agg, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAdjustBalance_DepositAndWithdraw(t *testing.T) {
	agg := newAggregate(t, 100)
	id := agg.Accounts[0].ID

	if _, err := AdjustBalance(agg, id, 50, Deposit); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	acc, err := AdjustBalance(agg, id, 150, Withdrawal)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if acc.Balance != 0 {
		t.Errorf("withdrawing the full balance should leave 0, got %v", acc.Balance)
	}
	if agg.BalanceSumCurrent != 0 {
		t.Errorf("expected balance sum 0, got %v", agg.BalanceSumCurrent)
	}
}

func TestAdjustBalance_InsufficientFundsLeavesBalance(t *testing.T) {
	agg := newAggregate(t, 100)
	id := agg.Accounts[0].ID

	_, err := AdjustBalance(agg, id, 100.01, Withdrawal)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if agg.Accounts[0].Balance != 100 || agg.BalanceSumCurrent != 100 {
		t.Errorf("balance should be unchanged, got %v / sum %v",
			agg.Accounts[0].Balance, agg.BalanceSumCurrent)
	}
}

func TestAdjustBalance_InvalidInput(t *testing.T) {
	agg := newAggregate(t, 100)
	id := agg.Accounts[0].ID

	for _, amount := range []float64{0, -5, math.Inf(1)} {
		if _, err := AdjustBalance(agg, id, amount, Deposit); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("amount %v: expected ErrInvalidArgument, got %v", amount, err)
		}
	}
	if _, err := AdjustBalance(agg, id, 5, Direction("transfer")); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown direction, got %v", err)
	}
	if _, err := AdjustBalance(agg, "missing", 5, Deposit); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
