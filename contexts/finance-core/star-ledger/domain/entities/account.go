package entities

import (
	"strings"
	"time"

	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"

	"github.com/shopspring/decimal"
)

// WalletScale is the number of decimal places kept for wallet amounts.
const WalletScale = 2

// Account is the per-user balance row. Stars are whole units; the wallet is a
// fixed-point currency amount.
type Account struct {
	UserID        string
	StarBalance   int64
	WalletBalance decimal.Decimal
	UpdatedAt     time.Time
}

func NewAccount(userID string, now time.Time) (Account, error) {
	if strings.TrimSpace(userID) == "" {
		return Account{}, domainerrors.ErrInvalidInput
	}
	return Account{
		UserID:        strings.TrimSpace(userID),
		WalletBalance: decimal.Zero,
		UpdatedAt:     now.UTC(),
	}, nil
}

func (a Account) HasStars(amount int64) bool {
	return amount >= 0 && a.StarBalance >= amount
}

func (a *Account) DebitStars(amount int64, now time.Time) error {
	if amount < 0 {
		return domainerrors.ErrInvalidInput
	}
	if !a.HasStars(amount) {
		return domainerrors.ErrInsufficientStars
	}
	a.StarBalance -= amount
	a.UpdatedAt = now.UTC()
	return nil
}

func (a *Account) CreditStars(amount int64, now time.Time) error {
	if amount <= 0 {
		return domainerrors.ErrInvalidInput
	}
	a.StarBalance += amount
	a.UpdatedAt = now.UTC()
	return nil
}

func (a *Account) CreditWallet(amount decimal.Decimal, now time.Time) error {
	if amount.IsNegative() {
		return domainerrors.ErrInvalidInput
	}
	a.WalletBalance = a.WalletBalance.Add(amount).Round(WalletScale)
	a.UpdatedAt = now.UTC()
	return nil
}
