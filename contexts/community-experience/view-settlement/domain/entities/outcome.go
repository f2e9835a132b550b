package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementOutcome is what the ledger reports for one settlement call.
type SettlementOutcome struct {
	Success           bool
	AlreadyViewed     bool
	Charged           bool
	InsufficientStars bool
	StarsSpent        int64
	ViewerEarn        decimal.Decimal
	AvailableStars    int64
	RequiredStars     int64
	Message           string
}

// Balance is the session's cached, read-only copy of a viewer's balances.
type Balance struct {
	UserID        string
	StarBalance   int64
	WalletBalance decimal.Decimal
	UpdatedAt     time.Time
}

// ParseBalance builds a Balance from the ledger's wire fields. wallet is a
// decimal string; an unparsable updatedAt is dropped.
func ParseBalance(userID string, stars int64, wallet string, updatedAt string) (Balance, error) {
	amount := decimal.Zero
	if wallet != "" {
		parsed, err := decimal.NewFromString(wallet)
		if err != nil {
			return Balance{}, fmt.Errorf("decode wallet_balance: %w", err)
		}
		amount = parsed
	}
	balance := Balance{UserID: userID, StarBalance: stars, WalletBalance: amount}
	if updatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			balance.UpdatedAt = ts
		}
	}
	return balance, nil
}
