package queries

import (
	"context"
	"errors"
	"strings"
	"time"

	"savemore/contexts/finance-core/star-ledger/domain/entities"
	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	"savemore/contexts/finance-core/star-ledger/ports"
)

// GetBalanceUseCase reads a user's balances. Users without an account yet
// report zero balances rather than an error.
type GetBalanceUseCase struct {
	Accounts ports.AccountReader
	Clock    ports.Clock
}

func (uc GetBalanceUseCase) Execute(ctx context.Context, userID string) (entities.Account, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return entities.Account{}, domainerrors.ErrInvalidInput
	}
	account, err := uc.Accounts.GetAccount(ctx, userID)
	if errors.Is(err, domainerrors.ErrAccountNotFound) {
		now := time.Now().UTC()
		if uc.Clock != nil {
			now = uc.Clock.Now().UTC()
		}
		return entities.NewAccount(userID, now)
	}
	return account, err
}

// Snapshot renders an account the way live sessions receive it.
func Snapshot(account entities.Account) ports.BalanceSnapshot {
	return ports.BalanceSnapshot{
		UserID:        account.UserID,
		StarBalance:   account.StarBalance,
		WalletBalance: account.WalletBalance.StringFixed(entities.WalletScale),
		UpdatedAt:     account.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
