package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "savemore/contexts/finance-core/star-ledger/application"
	"savemore/contexts/finance-core/star-ledger/ports"
)

// LedgerEventsTopic carries every ledger.* envelope.
const LedgerEventsTopic = "savemore.ledger.events.v1"

const moduleName = "finance-core/star-ledger"

type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	// OnRelayed, when set, is told how many rows each non-empty batch relayed.
	OnRelayed func(n int)
	Logger    *slog.Logger
}

// RunOnce publishes one batch of pending outbox rows in creation order and
// stops at the first publish failure so ordering is preserved on retry.
func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	topic := r.Topic
	if topic == "" {
		topic = LedgerEventsTopic
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("ledger outbox list failed",
			"event", "ledger_outbox_list_failed",
			"module", moduleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}

	published := 0
	for _, row := range pending {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			return published, err
		}
		if err := r.Publisher.Publish(ctx, topic, envelope); err != nil {
			logger.Error("ledger outbox publish failed",
				"event", "ledger_outbox_publish_failed",
				"module", moduleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", row.EventType,
				"error", err.Error(),
			)
			return published, err
		}
		if err := r.Outbox.MarkOutboxSent(ctx, row.OutboxID, r.now()); err != nil {
			return published, err
		}
		published++
	}
	if published > 0 {
		logger.Debug("ledger outbox batch relayed",
			"event", "ledger_outbox_batch_relayed",
			"module", moduleName,
			"layer", "worker",
			"count", published,
		)
	}
	return published, nil
}

// Run polls the outbox until ctx is cancelled. Publish failures are logged
// and retried on the next tick.
func (r OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, _ := r.RunOnce(ctx); n > 0 && r.OnRelayed != nil {
			r.OnRelayed(n)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r OutboxRelay) now() time.Time {
	if r.Clock == nil {
		return time.Now().UTC()
	}
	return r.Clock.Now().UTC()
}
