package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	application "savemore/contexts/finance-core/star-ledger/application"
	"savemore/contexts/finance-core/star-ledger/domain/entities"
	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	"savemore/contexts/finance-core/star-ledger/domain/services"
	"savemore/contexts/finance-core/star-ledger/ports"
)

const (
	messageContentNotFound = "content not found"
	messageStoryExpired    = "story has expired"
)

// ProcessViewCommand asks the ledger to settle one viewer's view of one item.
type ProcessViewCommand struct {
	ContentID string
	ViewerID  string
}

// ProcessViewUseCase settles first views. A (content, viewer) pair is charged
// at most once; every later call reports alreadyViewed.
type ProcessViewUseCase struct {
	Repo              ports.LedgerRepository
	Clock             ports.Clock
	IDGen             ports.IDGenerator
	Policy            services.SplitPolicy
	PlatformAccountID string
	Logger            *slog.Logger
}

func (uc ProcessViewUseCase) Execute(ctx context.Context, cmd ProcessViewCommand) (entities.SettlementOutcome, error) {
	logger := application.ResolveLogger(uc.Logger)
	contentID := strings.TrimSpace(cmd.ContentID)
	viewerID := strings.TrimSpace(cmd.ViewerID)
	if contentID == "" || viewerID == "" {
		logger.Warn("view settlement validation failed",
			"event", "ledger_view_validation_failed",
			"module", moduleName,
			"layer", "application",
			"content_id", contentID,
			"viewer_id", viewerID,
		)
		return entities.SettlementOutcome{}, domainerrors.ErrInvalidInput
	}

	outcome, err := uc.settle(ctx, contentID, viewerID)
	if errors.Is(err, domainerrors.ErrDuplicateView) {
		// A concurrent request recorded the same first view and committed first.
		logger.Info("view settlement lost race to concurrent first view",
			"event", "ledger_view_duplicate_resolved",
			"module", moduleName,
			"layer", "application",
			"content_id", contentID,
			"viewer_id", viewerID,
		)
		return entities.AlreadyViewedOutcome(), nil
	}
	if err != nil {
		logger.Error("view settlement failed",
			"event", "ledger_view_settlement_failed",
			"module", moduleName,
			"layer", "application",
			"content_id", contentID,
			"viewer_id", viewerID,
			"error", err.Error(),
		)
		return entities.SettlementOutcome{}, err
	}

	logger.Info("view settled",
		"event", "ledger_view_settled",
		"module", moduleName,
		"layer", "application",
		"content_id", contentID,
		"viewer_id", viewerID,
		"success", outcome.Success,
		"already_viewed", outcome.AlreadyViewed,
		"charged", outcome.Charged,
		"insufficient_stars", outcome.InsufficientStars,
		"stars_spent", outcome.StarsSpent,
	)
	return outcome, nil
}

func (uc ProcessViewUseCase) settle(ctx context.Context, contentID string, viewerID string) (entities.SettlementOutcome, error) {
	now := resolveNow(uc.Clock)
	platformID := resolvePlatformAccount(uc.PlatformAccountID)

	var outcome entities.SettlementOutcome
	err := uc.Repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		item, err := tx.GetContent(ctx, contentID)
		if errors.Is(err, domainerrors.ErrContentNotFound) {
			outcome = entities.DeclinedOutcome(messageContentNotFound)
			return nil
		}
		if err != nil {
			return err
		}
		if item.ExpiredAt(now) {
			outcome = entities.DeclinedOutcome(messageStoryExpired)
			return nil
		}

		if _, found, err := tx.GetViewRecord(ctx, contentID, viewerID); err != nil {
			return err
		} else if found {
			outcome = entities.AlreadyViewedOutcome()
			return nil
		}

		lockIDs := []string{viewerID}
		if !item.IsFree() && !item.IsOwnedBy(viewerID) {
			lockIDs = append(lockIDs, item.OwnerID, platformID)
		}
		accounts, err := tx.LockAccounts(ctx, lockIDs...)
		if err != nil {
			return err
		}
		viewer, ok := accounts[viewerID]
		if !ok {
			return domainerrors.ErrRepositoryInvariant
		}

		viewID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		decision := services.EvaluateFirstView(item, *viewer, uc.Policy, viewID, now)
		if err := tx.InsertViewRecord(ctx, decision.Record); err != nil {
			return err
		}

		affected := []string{}
		if decision.Charge {
			owner, platform := accounts[item.OwnerID], accounts[platformID]
			if owner == nil || platform == nil {
				return domainerrors.ErrRepositoryInvariant
			}
			if err := uc.applyCharge(ctx, tx, item, decision, viewer, owner, platform); err != nil {
				return err
			}
			affected = affectedUsers(viewer.UserID, owner.UserID, platform.UserID)
		}

		envelope, err := buildEnvelope(ctx, uc.IDGen, EventTypeViewSettled, "/data/viewer_id", viewerID, now, map[string]any{
			"view_id":            decision.Record.ViewID,
			"content_id":         item.ContentID,
			"viewer_id":          viewerID,
			"owner_id":           item.OwnerID,
			"charged":            decision.Record.Charged,
			"insufficient_stars": decision.Record.InsufficientStars,
			"stars_spent":        decision.Record.StarsSpent,
			"owner_share":        decision.Record.OwnerShare.StringFixed(entities.WalletScale),
			"viewer_cashback":    decision.Record.ViewerCashback.StringFixed(entities.WalletScale),
			"platform_share":     decision.Record.PlatformShare.StringFixed(entities.WalletScale),
			AffectedUsersKey:     affected,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, envelope); err != nil {
			return err
		}
		outcome = decision.Outcome
		return nil
	})
	return outcome, err
}

func (uc ProcessViewUseCase) applyCharge(
	ctx context.Context,
	tx ports.LedgerTx,
	item entities.ContentItem,
	decision services.ViewDecision,
	viewer *entities.Account,
	owner *entities.Account,
	platform *entities.Account,
) error {
	now := decision.Record.RecordedAt
	split := decision.Split
	if err := viewer.DebitStars(item.StarPrice, now); err != nil {
		return err
	}
	if err := viewer.CreditWallet(split.ViewerCashback, now); err != nil {
		return err
	}
	if err := owner.CreditWallet(split.OwnerShare, now); err != nil {
		return err
	}
	if err := platform.CreditWallet(split.PlatformShare, now); err != nil {
		return err
	}
	if err := tx.SaveAccounts(ctx, viewer, owner, platform); err != nil {
		return err
	}

	ref := decision.Record.ViewID
	charge, err := newEntry(ctx, uc.IDGen, viewer.UserID, entities.EntryTypeViewCharge, -item.StarPrice, decimal.Zero, ref, now)
	if err != nil {
		return err
	}
	cashback, err := newEntry(ctx, uc.IDGen, viewer.UserID, entities.EntryTypeViewCashback, 0, split.ViewerCashback, ref, now)
	if err != nil {
		return err
	}
	ownerShare, err := newEntry(ctx, uc.IDGen, owner.UserID, entities.EntryTypeViewOwnerShare, 0, split.OwnerShare, ref, now)
	if err != nil {
		return err
	}
	platformShare, err := newEntry(ctx, uc.IDGen, platform.UserID, entities.EntryTypePlatformShare, 0, split.PlatformShare, ref, now)
	if err != nil {
		return err
	}
	return tx.AppendEntries(ctx, charge, cashback, ownerShare, platformShare)
}
