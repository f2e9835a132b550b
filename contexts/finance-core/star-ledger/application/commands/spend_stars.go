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

// SpendStarsCommand debits stars for an in-app purchase such as a gift or
// boost. Replays with the same key return the first result.
type SpendStarsCommand struct {
	UserID         string
	Amount         int64
	Reason         string
	ReferenceID    string
	IdempotencyKey string
}

type SpendStarsResult struct {
	EntryID     string `json:"entry_id"`
	StarsSpent  int64  `json:"stars_spent"`
	StarBalance int64  `json:"star_balance"`
	Replayed    bool   `json:"-"`
}

type SpendStarsUseCase struct {
	Repo           ports.LedgerRepository
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func (uc SpendStarsUseCase) Execute(ctx context.Context, cmd SpendStarsCommand) (SpendStarsResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	userID := strings.TrimSpace(cmd.UserID)
	key := strings.TrimSpace(cmd.IdempotencyKey)
	if userID == "" || cmd.Amount <= 0 {
		return SpendStarsResult{}, domainerrors.ErrInvalidInput
	}
	if key == "" {
		return SpendStarsResult{}, domainerrors.ErrIdempotencyKeyMissing
	}

	now := resolveNow(uc.Clock)
	requestHash := hashPayload(map[string]any{
		"op":           "spend_stars",
		"user_id":      userID,
		"amount":       cmd.Amount,
		"reason":       strings.TrimSpace(cmd.Reason),
		"reference_id": strings.TrimSpace(cmd.ReferenceID),
	})

	var result SpendStarsResult
	err := uc.Repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		replayed, found, err := lookupReplay[SpendStarsResult](ctx, tx, key, requestHash, now)
		if err != nil {
			return err
		}
		if found {
			replayed.Replayed = true
			result = replayed
			return nil
		}

		entry, balance, err := debitStars(ctx, tx, uc.IDGen, userID, cmd.Amount, entities.EntryTypeStarsSpent, cmd.ReferenceID, now)
		if err != nil {
			return err
		}
		envelope, err := buildEnvelope(ctx, uc.IDGen, EventTypeStarsSpent, "/data/user_id", userID, now, map[string]any{
			"entry_id":       entry.EntryID,
			"user_id":        userID,
			"stars_spent":    cmd.Amount,
			"reason":         strings.TrimSpace(cmd.Reason),
			"reference_id":   strings.TrimSpace(cmd.ReferenceID),
			AffectedUsersKey: []string{userID},
		})
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, envelope); err != nil {
			return err
		}

		result = SpendStarsResult{EntryID: entry.EntryID, StarsSpent: cmd.Amount, StarBalance: balance}
		return storeReplay(ctx, tx, key, requestHash, result, now.Add(resolveTTL(uc.IdempotencyTTL)))
	})
	if err != nil {
		logger.Warn("star spend rejected",
			"event", "ledger_stars_spend_rejected",
			"module", moduleName,
			"layer", "application",
			"user_id", userID,
			"amount", cmd.Amount,
			"error", err.Error(),
		)
		return SpendStarsResult{}, err
	}

	logger.Info("stars spent",
		"event", "ledger_stars_spent",
		"module", moduleName,
		"layer", "application",
		"user_id", userID,
		"amount", cmd.Amount,
		"replayed", result.Replayed,
	)
	return result, nil
}

// debitStars locks the user's account, takes amount stars and journals the
// movement under entryType.
func debitStars(
	ctx context.Context,
	tx ports.LedgerTx,
	ids ports.IDGenerator,
	userID string,
	amount int64,
	entryType entities.EntryType,
	referenceID string,
	now time.Time,
) (entities.LedgerEntry, int64, error) {
	accounts, err := tx.LockAccounts(ctx, userID)
	if err != nil {
		return entities.LedgerEntry{}, 0, err
	}
	account, ok := accounts[userID]
	if !ok {
		return entities.LedgerEntry{}, 0, domainerrors.ErrRepositoryInvariant
	}
	if err := account.DebitStars(amount, now); err != nil {
		return entities.LedgerEntry{}, 0, err
	}
	if err := tx.SaveAccounts(ctx, account); err != nil {
		return entities.LedgerEntry{}, 0, err
	}
	entry, err := newEntry(ctx, ids, userID, entryType, -amount, decimal.Zero, strings.TrimSpace(referenceID), now)
	if err != nil {
		return entities.LedgerEntry{}, 0, err
	}
	if err := tx.AppendEntries(ctx, entry); err != nil {
		return entities.LedgerEntry{}, 0, err
	}
	return entry, account.StarBalance, nil
}
