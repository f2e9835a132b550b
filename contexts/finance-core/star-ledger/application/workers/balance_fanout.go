package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	application "savemore/contexts/finance-core/star-ledger/application"
	"savemore/contexts/finance-core/star-ledger/application/queries"
	"savemore/contexts/finance-core/star-ledger/ports"
)

// BalanceFanout consumes ledger events and pushes a fresh balance snapshot
// for every user the event touched.
type BalanceFanout struct {
	Dedup     ports.EventDedupStore
	Balances  queries.GetBalanceUseCase
	Publisher ports.BalancePublisher
	Clock     ports.Clock
	DedupTTL  time.Duration
	Logger    *slog.Logger
}

type affectedUsersPayload struct {
	AffectedUserIDs []string `json:"affected_user_ids"`
}

func (f BalanceFanout) Handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(f.Logger)
	now := time.Now().UTC()
	if f.Clock != nil {
		now = f.Clock.Now().UTC()
	}

	alreadyProcessed, err := f.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), now.Add(f.dedupTTL()))
	if err != nil || alreadyProcessed {
		return err
	}

	var payload affectedUsersPayload
	if err := event.DecodeData(&payload); err != nil {
		logger.Warn("ledger event payload undecodable",
			"event", "ledger_balance_fanout_payload_invalid",
			"module", moduleName,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return nil
	}

	for _, userID := range payload.AffectedUserIDs {
		account, err := f.Balances.Execute(ctx, userID)
		if err != nil {
			return err
		}
		if err := f.Publisher.PublishBalance(ctx, queries.Snapshot(account)); err != nil {
			logger.Error("balance fanout publish failed",
				"event", "ledger_balance_fanout_failed",
				"module", moduleName,
				"layer", "worker",
				"event_id", event.EventID,
				"user_id", userID,
				"error", err.Error(),
			)
			return err
		}
	}
	return nil
}

func (f BalanceFanout) dedupTTL() time.Duration {
	if f.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return f.DedupTTL
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
