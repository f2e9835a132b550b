package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "savemore/contexts/finance-core/star-ledger/application"
	"savemore/contexts/finance-core/star-ledger/domain/entities"
	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	"savemore/contexts/finance-core/star-ledger/domain/services"
	"savemore/contexts/finance-core/star-ledger/ports"
)

const (
	defaultVoiceSecondsPerStar    = 10
	defaultVoiceRechargeThreshold = 20
)

// DeductVoiceCreditsCommand charges a voice message by its duration.
type DeductVoiceCreditsCommand struct {
	UserID          string
	DurationSeconds int
	MessageID       string
	IdempotencyKey  string
}

type DeductVoiceCreditsResult struct {
	EntryID           string `json:"entry_id"`
	StarsDeducted     int64  `json:"stars_deducted"`
	StarBalance       int64  `json:"star_balance"`
	RechargeSuggested bool   `json:"recharge_suggested"`
	Replayed          bool   `json:"-"`
}

type DeductVoiceCreditsUseCase struct {
	Repo              ports.LedgerRepository
	Clock             ports.Clock
	IDGen             ports.IDGenerator
	SecondsPerStar    int
	RechargeThreshold int64
	IdempotencyTTL    time.Duration
	Logger            *slog.Logger
}

func (uc DeductVoiceCreditsUseCase) Execute(ctx context.Context, cmd DeductVoiceCreditsCommand) (DeductVoiceCreditsResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	userID := strings.TrimSpace(cmd.UserID)
	key := strings.TrimSpace(cmd.IdempotencyKey)
	if userID == "" || cmd.DurationSeconds <= 0 {
		return DeductVoiceCreditsResult{}, domainerrors.ErrInvalidInput
	}
	if key == "" {
		return DeductVoiceCreditsResult{}, domainerrors.ErrIdempotencyKeyMissing
	}

	cost := services.VoiceCreditCost(cmd.DurationSeconds, uc.secondsPerStar())
	now := resolveNow(uc.Clock)
	requestHash := hashPayload(map[string]any{
		"op":               "voice_credits",
		"user_id":          userID,
		"duration_seconds": cmd.DurationSeconds,
		"message_id":       strings.TrimSpace(cmd.MessageID),
	})

	var result DeductVoiceCreditsResult
	err := uc.Repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		replayed, found, err := lookupReplay[DeductVoiceCreditsResult](ctx, tx, key, requestHash, now)
		if err != nil {
			return err
		}
		if found {
			replayed.Replayed = true
			result = replayed
			return nil
		}

		entry, balance, err := debitStars(ctx, tx, uc.IDGen, userID, cost, entities.EntryTypeVoiceCredits, cmd.MessageID, now)
		if err != nil {
			return err
		}
		envelope, err := buildEnvelope(ctx, uc.IDGen, EventTypeStarsSpent, "/data/user_id", userID, now, map[string]any{
			"entry_id":         entry.EntryID,
			"user_id":          userID,
			"stars_spent":      cost,
			"reason":           string(entities.EntryTypeVoiceCredits),
			"reference_id":     strings.TrimSpace(cmd.MessageID),
			"duration_seconds": cmd.DurationSeconds,
			AffectedUsersKey:   []string{userID},
		})
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, envelope); err != nil {
			return err
		}

		result = DeductVoiceCreditsResult{
			EntryID:           entry.EntryID,
			StarsDeducted:     cost,
			StarBalance:       balance,
			RechargeSuggested: balance < uc.rechargeThreshold(),
		}
		return storeReplay(ctx, tx, key, requestHash, result, now.Add(resolveTTL(uc.IdempotencyTTL)))
	})
	if err != nil {
		logger.Warn("voice credit deduction rejected",
			"event", "ledger_voice_credits_rejected",
			"module", moduleName,
			"layer", "application",
			"user_id", userID,
			"duration_seconds", cmd.DurationSeconds,
			"error", err.Error(),
		)
		return DeductVoiceCreditsResult{}, err
	}

	logger.Info("voice credits deducted",
		"event", "ledger_voice_credits_deducted",
		"module", moduleName,
		"layer", "application",
		"user_id", userID,
		"stars_deducted", result.StarsDeducted,
		"recharge_suggested", result.RechargeSuggested,
		"replayed", result.Replayed,
	)
	return result, nil
}

func (uc DeductVoiceCreditsUseCase) secondsPerStar() int {
	if uc.SecondsPerStar <= 0 {
		return defaultVoiceSecondsPerStar
	}
	return uc.SecondsPerStar
}

func (uc DeductVoiceCreditsUseCase) rechargeThreshold() int64 {
	if uc.RechargeThreshold <= 0 {
		return defaultVoiceRechargeThreshold
	}
	return uc.RechargeThreshold
}
