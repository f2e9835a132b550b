package balance

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"savemore/contexts/community-experience/view-settlement/domain/entities"
	"savemore/internal/platform/redisx"
)

type snapshotMessage struct {
	UserID        string `json:"user_id"`
	StarBalance   int64  `json:"star_balance"`
	WalletBalance string `json:"wallet_balance"`
	UpdatedAt     string `json:"updated_at"`
}

// RedisUpdates receives the balance snapshots the ledger worker pushes on
// the user's balance channel.
type RedisUpdates struct {
	pubsub *redisx.TypedPubSub[snapshotMessage]
	logger *slog.Logger
}

func NewRedisUpdates(client goredis.UniversalClient, logger *slog.Logger) *RedisUpdates {
	return &RedisUpdates{
		pubsub: redisx.NewTypedPubSub[snapshotMessage](client, logger),
		logger: logger,
	}
}

func (r *RedisUpdates) Subscribe(ctx context.Context, userID string, onUpdate func(entities.Balance)) error {
	return r.pubsub.Subscribe(ctx, redisx.BalanceChannel(userID), func(msg snapshotMessage) {
		if msg.UserID != userID {
			return
		}
		balance, err := entities.ParseBalance(msg.UserID, msg.StarBalance, msg.WalletBalance, msg.UpdatedAt)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("balance snapshot undecodable",
					"event", "balance_snapshot_invalid",
					"module", "community-experience/view-settlement",
					"layer", "adapter",
					"user_id", userID,
					"error", err.Error(),
				)
			}
			return
		}
		onUpdate(balance)
	})
}
