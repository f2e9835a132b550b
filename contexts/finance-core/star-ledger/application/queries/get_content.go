package queries

import (
	"context"
	"strings"

	"savemore/contexts/finance-core/star-ledger/domain/entities"
	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	"savemore/contexts/finance-core/star-ledger/ports"
)

// GetContentUseCase returns the registered record of a content item, the
// authority on its owner and price.
type GetContentUseCase struct {
	Repo ports.LedgerRepository
}

func (uc GetContentUseCase) Execute(ctx context.Context, contentID string) (entities.ContentItem, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return entities.ContentItem{}, domainerrors.ErrInvalidInput
	}
	var item entities.ContentItem
	err := uc.Repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		var err error
		item, err = tx.GetContent(ctx, contentID)
		return err
	})
	return item, err
}
