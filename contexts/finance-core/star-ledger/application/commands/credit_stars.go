package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	application "savemore/contexts/finance-core/star-ledger/application"
	"savemore/contexts/finance-core/star-ledger/domain/entities"
	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	"savemore/contexts/finance-core/star-ledger/ports"
)

// CreditStarsCommand tops up a user's stars. ActorID is recorded on the
// event for audit.
type CreditStarsCommand struct {
	UserID         string
	Amount         int64
	ActorID        string
	IdempotencyKey string
}

type CreditStarsResult struct {
	EntryID     string `json:"entry_id"`
	StarBalance int64  `json:"star_balance"`
	Replayed    bool   `json:"-"`
}

type CreditStarsUseCase struct {
	Repo           ports.LedgerRepository
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func (uc CreditStarsUseCase) Execute(ctx context.Context, cmd CreditStarsCommand) (CreditStarsResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	userID := strings.TrimSpace(cmd.UserID)
	key := strings.TrimSpace(cmd.IdempotencyKey)
	if userID == "" || cmd.Amount <= 0 {
		return CreditStarsResult{}, domainerrors.ErrInvalidInput
	}
	if key == "" {
		return CreditStarsResult{}, domainerrors.ErrIdempotencyKeyMissing
	}

	now := resolveNow(uc.Clock)
	requestHash := hashPayload(map[string]any{
		"op":      "credit_stars",
		"user_id": userID,
		"amount":  cmd.Amount,
	})

	var result CreditStarsResult
	err := uc.Repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		replayed, found, err := lookupReplay[CreditStarsResult](ctx, tx, key, requestHash, now)
		if err != nil {
			return err
		}
		if found {
			replayed.Replayed = true
			result = replayed
			return nil
		}

		accounts, err := tx.LockAccounts(ctx, userID)
		if err != nil {
			return err
		}
		account, ok := accounts[userID]
		if !ok {
			return domainerrors.ErrRepositoryInvariant
		}
		if err := account.CreditStars(cmd.Amount, now); err != nil {
			return err
		}
		if err := tx.SaveAccounts(ctx, account); err != nil {
			return err
		}
		entry, err := newEntry(ctx, uc.IDGen, userID, entities.EntryTypeStarTopUp, cmd.Amount, decimal.Zero, key, now)
		if err != nil {
			return err
		}
		if err := tx.AppendEntries(ctx, entry); err != nil {
			return err
		}
		envelope, err := buildEnvelope(ctx, uc.IDGen, EventTypeStarsCredited, "/data/user_id", userID, now, map[string]any{
			"entry_id":       entry.EntryID,
			"user_id":        userID,
			"amount":         cmd.Amount,
			"actor_id":       strings.TrimSpace(cmd.ActorID),
			AffectedUsersKey: []string{userID},
		})
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, envelope); err != nil {
			return err
		}

		result = CreditStarsResult{EntryID: entry.EntryID, StarBalance: account.StarBalance}
		return storeReplay(ctx, tx, key, requestHash, result, now.Add(resolveTTL(uc.IdempotencyTTL)))
	})
	if err != nil {
		logger.Error("star credit failed",
			"event", "ledger_stars_credit_failed",
			"module", moduleName,
			"layer", "application",
			"user_id", userID,
			"error", err.Error(),
		)
		return CreditStarsResult{}, err
	}

	logger.Info("stars credited",
		"event", "ledger_stars_credited",
		"module", moduleName,
		"layer", "application",
		"user_id", userID,
		"actor_id", strings.TrimSpace(cmd.ActorID),
		"amount", cmd.Amount,
		"replayed", result.Replayed,
	)
	return result, nil
}
