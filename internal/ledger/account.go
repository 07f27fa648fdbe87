package ledger

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/atmx/wager-ledger/internal/model"
)

// Direction is the kind of balance adjustment.
type Direction string

const (
	Deposit    Direction = "deposit"
	Withdrawal Direction = "withdrawal"
)

// AccountInput carries the identity fields and balance of an account.
type AccountInput struct {
	Email          string
	Phone          string
	GovernmentID   string
	Username       string
	DeviceLocation string
	Balance        float64
}

func (in AccountInput) validate() error {
	switch {
	case in.Email == "":
		return fmt.Errorf("%w: email is required", ErrInvalidArgument)
	case in.Phone == "":
		return fmt.Errorf("%w: phone is required", ErrInvalidArgument)
	case in.GovernmentID == "":
		return fmt.Errorf("%w: government id is required", ErrInvalidArgument)
	case !finite(in.Balance) || in.Balance < 0:
		return fmt.Errorf("%w: balance must be a non-negative number", ErrInvalidArgument)
	}
	return nil
}

// CreateAccount appends a new account with a fresh id and no wagers.
func CreateAccount(agg *model.Aggregate, in AccountInput) (model.Account, error) {
	if err := in.validate(); err != nil {
		return model.Account{}, err
	}

	acc := model.Account{
		ID:             uuid.New().String(),
		Email:          in.Email,
		Phone:          in.Phone,
		GovernmentID:   in.GovernmentID,
		Username:       in.Username,
		DeviceLocation: in.DeviceLocation,
		Balance:        in.Balance,
		OpenWagers:     []model.Wager{},
	}
	agg.Accounts = append(agg.Accounts, acc)
	RecomputeBalanceSum(agg)
	return acc, nil
}

// UpdateAccount replaces the identity fields and balance of an account.
// Open wagers are kept.
func UpdateAccount(agg *model.Aggregate, accountID string, in AccountInput) (model.Account, error) {
	if err := in.validate(); err != nil {
		return model.Account{}, err
	}
	i := findAccount(agg, accountID)
	if i < 0 {
		return model.Account{}, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
	}

	acc := &agg.Accounts[i]
	acc.Email = in.Email
	acc.Phone = in.Phone
	acc.GovernmentID = in.GovernmentID
	acc.Username = in.Username
	acc.DeviceLocation = in.DeviceLocation
	acc.Balance = in.Balance

	RecomputeBalanceSum(agg)
	return *acc, nil
}

// DeleteAccount removes an account together with its open wagers and
// returns how many open wagers were discarded.
func DeleteAccount(agg *model.Aggregate, accountID string) (int, error) {
	i := findAccount(agg, accountID)
	if i < 0 {
		return 0, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
	}

	discarded := len(agg.Accounts[i].OpenWagers)
	agg.Accounts = append(agg.Accounts[:i], agg.Accounts[i+1:]...)
	RecomputeBalanceSum(agg)
	return discarded, nil
}

// AdjustBalance deposits to or withdraws from an account. A withdrawal that
// would leave a negative balance fails with ErrInsufficientFunds.
func AdjustBalance(agg *model.Aggregate, accountID string, amount float64, dir Direction) (model.Account, error) {
	if !finite(amount) || amount <= 0 {
		return model.Account{}, fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}
	if dir != Deposit && dir != Withdrawal {
		return model.Account{}, fmt.Errorf("%w: unknown direction %q", ErrInvalidArgument, dir)
	}
	i := findAccount(agg, accountID)
	if i < 0 {
		return model.Account{}, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
	}

	acc := &agg.Accounts[i]
	next := acc.Balance + amount
	if dir == Withdrawal {
		next = acc.Balance - amount
		if next < 0 {
			return model.Account{}, fmt.Errorf("%w: balance %.2f, withdrawal %.2f",
				ErrInsufficientFunds, acc.Balance, amount)
		}
	}
	acc.Balance = next

	RecomputeBalanceSum(agg)
	return *acc, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
