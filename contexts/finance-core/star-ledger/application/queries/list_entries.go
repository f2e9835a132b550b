package queries

import (
	"context"
	"strings"

	"savemore/contexts/finance-core/star-ledger/domain/entities"
	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	"savemore/contexts/finance-core/star-ledger/ports"
)

const (
	defaultEntriesLimit = 50
	maxEntriesLimit     = 200
)

type ListEntriesQuery struct {
	UserID string
	Limit  int
	Offset int
}

type ListEntriesUseCase struct {
	Accounts ports.AccountReader
}

func (uc ListEntriesUseCase) Execute(ctx context.Context, query ListEntriesQuery) ([]entities.LedgerEntry, error) {
	userID := strings.TrimSpace(query.UserID)
	if userID == "" || query.Offset < 0 {
		return nil, domainerrors.ErrInvalidInput
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultEntriesLimit
	}
	if limit > maxEntriesLimit {
		limit = maxEntriesLimit
	}
	return uc.Accounts.ListEntries(ctx, userID, limit, query.Offset)
}
