package api

import (
	"github.com/go-playground/validator/v10"

	"github.com/atmx/wager-ledger/internal/ledger"
	"github.com/atmx/wager-ledger/internal/model"
)

var validate = validator.New()

// SyncUserRequest is the JSON body for PUT /api/v1/users/{userID}.
type SyncUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	Image string `json:"image"`
}

func (r *SyncUserRequest) Validate() error {
	return validate.Struct(r)
}

// AccountRequest is the JSON body for creating or replacing an account.
type AccountRequest struct {
	Email          string  `json:"email" validate:"required"`
	Phone          string  `json:"phone" validate:"required"`
	GovernmentID   string  `json:"government_id" validate:"required"`
	Username       string  `json:"username"`
	DeviceLocation string  `json:"device_location"`
	Balance        float64 `json:"balance" validate:"gte=0"`
}

func (r *AccountRequest) Validate() error {
	return validate.Struct(r)
}

func (r *AccountRequest) input() ledger.AccountInput {
	return ledger.AccountInput{
		Email:          r.Email,
		Phone:          r.Phone,
		GovernmentID:   r.GovernmentID,
		Username:       r.Username,
		DeviceLocation: r.DeviceLocation,
		Balance:        r.Balance,
	}
}

// BalanceRequest is the JSON body for POST .../accounts/{accountID}/balance.
type BalanceRequest struct {
	Amount    float64 `json:"amount" validate:"gt=0"`
	Direction string  `json:"direction" validate:"required,oneof=deposit withdrawal"`
}

func (r *BalanceRequest) Validate() error {
	return validate.Struct(r)
}

// SideRequest is one outcome of an event with its payout odds.
type SideRequest struct {
	Label string  `json:"label" validate:"required"`
	Odds  float64 `json:"odds" validate:"gt=0"`
}

func (s SideRequest) side() model.Side {
	return model.Side{Label: s.Label, PayoutOdds: s.Odds}
}

// PlaceWagerRequest is the JSON body for POST .../wagers. AccountIDs[i]
// backs Choices[i].
type PlaceWagerRequest struct {
	AccountIDs []string    `json:"account_ids" validate:"required,min=1,dive,required"`
	Choices    []string    `json:"choices" validate:"required,min=1,dive,oneof=A B"`
	SideA      SideRequest `json:"side_a"`
	SideB      SideRequest `json:"side_b"`
	Pot        float64     `json:"pot" validate:"gt=0"`
}

func (r *PlaceWagerRequest) Validate() error {
	return validate.Struct(r)
}

func (r *PlaceWagerRequest) input() ledger.WagerInput {
	choices := make([]model.Choice, len(r.Choices))
	for i, c := range r.Choices {
		choices[i] = model.Choice(c)
	}
	return ledger.WagerInput{
		AccountIDs: r.AccountIDs,
		Choices:    choices,
		SideA:      r.SideA.side(),
		SideB:      r.SideB.side(),
		Pot:        r.Pot,
	}
}

// SettleRequest is the JSON body for POST .../matches/settle.
type SettleRequest struct {
	MatchKey    string             `json:"match_key" validate:"required"`
	WinningSide string             `json:"winning_side" validate:"required"`
	Push        bool               `json:"push"`
	Cashouts    map[string]float64 `json:"cashouts" validate:"omitempty,dive,keys,required,endkeys,gte=0"`
}

func (r *SettleRequest) Validate() error {
	return validate.Struct(r)
}

func (r *SettleRequest) input() ledger.SettleInput {
	return ledger.SettleInput{
		MatchKey:    r.MatchKey,
		WinningSide: r.WinningSide,
		Push:        r.Push,
		Cashouts:    r.Cashouts,
	}
}
