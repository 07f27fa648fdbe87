package ledger

import (
	"errors"
	"testing"

	"github.com/atmx/wager-ledger/internal/model"
)

func TestPlaceWager_StakeFormula(t *testing.T) {
	tests := []struct {
		pot, odds float64
	}{
		{1000, 2.0},
		{1000, 4.0},
		{333, 1.7},
		{1, 0.5},
		{250.75, 10},
	}

	for _, tc := range tests {
		agg := newAggregate(t, 5000)
		in := WagerInput{
			AccountIDs: ids(agg),
			Choices:    []model.Choice{model.ChoiceB},
			SideA:      model.Side{Label: "Home", PayoutOdds: 9},
			SideB:      model.Side{Label: "Away", PayoutOdds: tc.odds},
			Pot:        tc.pot,
		}
		placed, err := PlaceWager(agg, in, t0)
		if err != nil {
			t.Fatalf("pot=%v odds=%v: %v", tc.pot, tc.odds, err)
		}

		want := tc.pot / tc.odds
		if !approx(placed[0].Stake, want) {
			t.Errorf("pot=%v odds=%v: stake %v, want %v", tc.pot, tc.odds, placed[0].Stake, want)
		}
		if !approx(agg.Accounts[0].Balance, 5000-want) {
			t.Errorf("pot=%v odds=%v: balance %v, want %v", tc.pot, tc.odds, agg.Accounts[0].Balance, 5000-want)
		}
	}
}

func TestPlaceWager_ZeroesUnselectedSide(t *testing.T) {
	agg := newAggregate(t, 1000, 1000)
	in := indiaAustralia(model.ChoiceA, model.ChoiceB)
	in.AccountIDs = ids(agg)

	placed, err := PlaceWager(agg, in, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, b := placed[0], placed[1]
	if a.SideA.PayoutOdds != 2.0 || a.SideB.PayoutOdds != 0 {
		t.Errorf("A backer: got odds %v/%v, want 2/0", a.SideA.PayoutOdds, a.SideB.PayoutOdds)
	}
	if b.SideA.PayoutOdds != 0 || b.SideB.PayoutOdds != 4.0 {
		t.Errorf("B backer: got odds %v/%v, want 0/4", b.SideA.PayoutOdds, b.SideB.PayoutOdds)
	}
	for _, w := range placed {
		if _, _, ok := w.Selection(); !ok {
			t.Errorf("wager %s should carry exactly one selected side", w.ID)
		}
		if !w.PlacedAt.Equal(t0) {
			t.Errorf("placed_at = %v, want %v", w.PlacedAt, t0)
		}
	}
}

func TestPlaceWager_SnapshotsBalanceSum(t *testing.T) {
	agg := newAggregate(t, 1000, 1000)
	in := indiaAustralia(model.ChoiceA, model.ChoiceB)
	in.AccountIDs = ids(agg)

	if _, err := PlaceWager(agg, in, t0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg.BalanceSumBeforeBet != 2000 {
		t.Errorf("before-bet snapshot = %v, want 2000", agg.BalanceSumBeforeBet)
	}
	if agg.BalanceSumCurrent != 1250 {
		t.Errorf("current sum = %v, want 1250", agg.BalanceSumCurrent)
	}
}

func TestPlaceWager_MayOverdraw(t *testing.T) {
	agg := newAggregate(t, 10)
	in := indiaAustralia(model.ChoiceA)
	in.AccountIDs = ids(agg)

	if _, err := PlaceWager(agg, in, t0); err != nil {
		t.Fatalf("placement is not balance-checked, got %v", err)
	}
	if agg.Accounts[0].Balance != -490 {
		t.Errorf("balance = %v, want -490", agg.Accounts[0].Balance)
	}
}

func TestPlaceWager_MissingAccountMutatesNothing(t *testing.T) {
	agg := newAggregate(t, 1000, 1000)
	agg.BalanceSumBeforeBet = 7
	in := indiaAustralia(model.ChoiceA, model.ChoiceB)
	in.AccountIDs = []string{agg.Accounts[0].ID, "ghost"}

	_, err := PlaceWager(agg, in, t0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if agg.Accounts[0].Balance != 1000 || len(agg.Accounts[0].OpenWagers) != 0 {
		t.Error("first account should be untouched")
	}
	if agg.BalanceSumBeforeBet != 7 {
		t.Error("snapshot should be untouched")
	}
}

func TestPlaceWager_InvalidInput(t *testing.T) {
	agg := newAggregate(t, 1000)
	id := agg.Accounts[0].ID
	good := indiaAustralia(model.ChoiceA)
	good.AccountIDs = []string{id}

	tests := []struct {
		name   string
		mutate func(*WagerInput)
	}{
		{"no accounts", func(in *WagerInput) { in.AccountIDs, in.Choices = nil, nil }},
		{"length mismatch", func(in *WagerInput) { in.Choices = []model.Choice{model.ChoiceA, model.ChoiceB} }},
		{"bad choice", func(in *WagerInput) { in.Choices = []model.Choice{"team1"} }},
		{"empty label", func(in *WagerInput) { in.SideB.Label = "" }},
		{"same labels", func(in *WagerInput) { in.SideB.Label = in.SideA.Label }},
		{"zero odds", func(in *WagerInput) { in.SideA.PayoutOdds = 0 }},
		{"negative odds", func(in *WagerInput) { in.SideB.PayoutOdds = -2 }},
		{"zero pot", func(in *WagerInput) { in.Pot = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := good
			in.AccountIDs = append([]string(nil), good.AccountIDs...)
			in.Choices = append([]model.Choice(nil), good.Choices...)
			tc.mutate(&in)
			if _, err := PlaceWager(agg, in, t0); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
	if len(agg.Accounts[0].OpenWagers) != 0 {
		t.Error("no wager should have been placed")
	}
}

func TestPlaceWager_DuplicateAccountPlacesTwice(t *testing.T) {
	agg := newAggregate(t, 1000)
	id := agg.Accounts[0].ID
	in := indiaAustralia(model.ChoiceA, model.ChoiceB)
	in.AccountIDs = []string{id, id}

	if _, err := PlaceWager(agg, in, t0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agg.Accounts[0].OpenWagers) != 2 {
		t.Errorf("expected 2 wagers, got %d", len(agg.Accounts[0].OpenWagers))
	}
	if agg.Accounts[0].Balance != 250 {
		t.Errorf("balance = %v, want 1000-500-250", agg.Accounts[0].Balance)
	}
}
