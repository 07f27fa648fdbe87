// Package model defines the core domain types shared across the wager ledger.
// Amounts are float64: the ledger deliberately works in IEEE-754 doubles.
package model

import (
	"time"
)

// Choice identifies which side of a wager an account backed.
type Choice string

const (
	ChoiceA Choice = "A"
	ChoiceB Choice = "B"
)

// Valid reports whether c is one of the two known sides.
func (c Choice) Valid() bool {
	return c == ChoiceA || c == ChoiceB
}

// Side is one of the two outcomes of an event. On a stored wager the side
// that was not backed carries PayoutOdds == 0.
type Side struct {
	Label      string  `json:"label"`
	PayoutOdds float64 `json:"payout_odds"`
}

// Wager is an open bet owned by exactly one account.
type Wager struct {
	ID       string    `json:"id"`
	SideA    Side      `json:"side_a"`
	SideB    Side      `json:"side_b"`
	Pot      float64   `json:"pot"`   // shared denominator used to derive the stake
	Stake    float64   `json:"stake"` // pot / selected odds, debited at placement
	PlacedAt time.Time `json:"placed_at"`
}

// Selection returns the backed side. ok is false when the wager does not
// carry exactly one positive side (a corrupt wager).
func (w Wager) Selection() (choice Choice, side Side, ok bool) {
	switch {
	case w.SideA.PayoutOdds > 0 && w.SideB.PayoutOdds == 0:
		return ChoiceA, w.SideA, true
	case w.SideB.PayoutOdds > 0 && w.SideA.PayoutOdds == 0:
		return ChoiceB, w.SideB, true
	}
	return "", Side{}, false
}

// OnPair reports whether the wager is on the unordered pair {a, b}.
func (w Wager) OnPair(a, b string) bool {
	return (w.SideA.Label == a && w.SideB.Label == b) ||
		(w.SideA.Label == b && w.SideB.Label == a)
}

// Account is a sub-account of a user with its own balance and open wagers.
type Account struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	GovernmentID   string  `json:"government_id"`
	Username       string  `json:"username,omitempty"`
	DeviceLocation string  `json:"device_location,omitempty"`
	Balance        float64 `json:"balance"`
	OpenWagers     []Wager `json:"open_wagers"`
}

// Aggregate is the per-user document holding all accounts, open wagers and
// bookkeeping fields. It is the unit of atomic read-modify-write.
type Aggregate struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Image  string `json:"image,omitempty"`

	BalanceSumCurrent         float64 `json:"balance_sum_current"`
	BalanceSumBeforeBet       float64 `json:"balance_sum_before_bet"`
	BalanceSumAfterSettlement float64 `json:"balance_sum_after_settlement"`
	CycleProfitOrLoss         float64 `json:"cycle_profit_or_loss"`
	NetProfitOrLoss           float64 `json:"net_profit_or_loss"`

	Accounts []Account `json:"accounts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate without aliasing storage.
func (a *Aggregate) Clone() *Aggregate {
	if a == nil {
		return nil
	}
	c := *a
	c.Accounts = make([]Account, len(a.Accounts))
	for i, acc := range a.Accounts {
		c.Accounts[i] = acc
		c.Accounts[i].OpenWagers = append([]Wager(nil), acc.OpenWagers...)
	}
	return &c
}

// Outcome tags how a history record was settled.
type Outcome string

const (
	OutcomeWon     Outcome = "won"
	OutcomeLost    Outcome = "lost"
	OutcomePush    Outcome = "push"
	OutcomeCashout Outcome = "cashout"
)

// HistoryRecord is an immutable record of one settled wager.
// Once created, these are never modified; they are only purged in bulk.
type HistoryRecord struct {
	ID                      string    `json:"id"`
	UserID                  string    `json:"user_id"`
	AccountID               string    `json:"account_id"`
	AccountEmail            string    `json:"account_email"`
	SideA                   Side      `json:"side_a"`
	SideB                   Side      `json:"side_b"`
	Pot                     float64   `json:"pot"`
	Stake                   float64   `json:"stake"`
	PlacedAt                time.Time `json:"placed_at"`
	SettledAt               time.Time `json:"settled_at"`
	WinningSide             string    `json:"winning_side"`
	Outcome                 Outcome   `json:"outcome"`
	Payout                  float64   `json:"payout"`
	Profit                  float64   `json:"profit"`
	BalanceBeforeSettlement float64   `json:"balance_before_settlement"`
	BalanceAfterSettlement  float64   `json:"balance_after_settlement"`
}

// MatchEntry pairs an open wager with the account holding it.
type MatchEntry struct {
	AccountID    string  `json:"account_id"`
	AccountEmail string  `json:"account_email"`
	Balance      float64 `json:"balance"`
	Wager        Wager   `json:"wager"`
}

// Match is a derived grouping of open wagers on the same unordered pair of
// labels. It is never persisted.
type Match struct {
	Key          string       `json:"key"` // "<teamA>-vs-<teamB>"
	TeamA        string       `json:"team_a"`
	TeamB        string       `json:"team_b"`
	Entries      []MatchEntry `json:"entries"`
	LastPlacedAt time.Time    `json:"last_placed_at"`
}

// SkippedWager names an open wager settlement left untouched.
type SkippedWager struct {
	AccountID string `json:"account_id"`
	WagerID   string `json:"wager_id"`
	Reason    string `json:"reason"`
}

// SettlementResult summarizes one SettleMatch call.
type SettlementResult struct {
	MatchKey          string         `json:"match_key"`
	WinningSide       string         `json:"winning_side"`
	SettledCount      int            `json:"settled_count"`
	PaidCount         int            `json:"paid_count"`
	TotalPayout       float64        `json:"total_payout"`
	CycleProfitOrLoss float64        `json:"cycle_profit_or_loss"`
	NetProfitOrLoss   float64        `json:"net_profit_or_loss"`
	Skipped           []SkippedWager `json:"skipped"`
}
