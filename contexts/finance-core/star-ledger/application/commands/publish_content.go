package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "savemore/contexts/finance-core/star-ledger/application"
	"savemore/contexts/finance-core/star-ledger/domain/entities"
	"savemore/contexts/finance-core/star-ledger/ports"
)

// PublishContentCommand registers a post or story so that views of it can be
// settled. An empty ContentID is assigned by the ledger.
type PublishContentCommand struct {
	ContentID string
	OwnerID   string
	Kind      entities.ContentKind
	MediaKind entities.MediaKind
	StarPrice int64
}

type PublishContentUseCase struct {
	Repo     ports.LedgerRepository
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	StoryTTL time.Duration
	Logger   *slog.Logger
}

func (uc PublishContentUseCase) Execute(ctx context.Context, cmd PublishContentCommand) (entities.ContentItem, error) {
	logger := application.ResolveLogger(uc.Logger)
	contentID := strings.TrimSpace(cmd.ContentID)
	if contentID == "" {
		generated, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.ContentItem{}, err
		}
		contentID = generated
	}

	item, err := entities.NewContentItem(
		contentID,
		cmd.OwnerID,
		cmd.Kind,
		cmd.MediaKind,
		cmd.StarPrice,
		resolveNow(uc.Clock),
		uc.StoryTTL,
	)
	if err != nil {
		return entities.ContentItem{}, err
	}

	if err := uc.Repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		return tx.CreateContent(ctx, item)
	}); err != nil {
		logger.Warn("content publish rejected",
			"event", "ledger_content_publish_rejected",
			"module", moduleName,
			"layer", "application",
			"content_id", contentID,
			"owner_id", strings.TrimSpace(cmd.OwnerID),
			"error", err.Error(),
		)
		return entities.ContentItem{}, err
	}

	logger.Info("content published",
		"event", "ledger_content_published",
		"module", moduleName,
		"layer", "application",
		"content_id", item.ContentID,
		"owner_id", item.OwnerID,
		"kind", string(item.Kind),
		"star_price", item.StarPrice,
	)
	return item, nil
}
