package redisadapter

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"savemore/contexts/finance-core/star-ledger/ports"
	"savemore/internal/platform/redisx"
)

// BalancePublisher pushes balance snapshots to the user's balance channel.
type BalancePublisher struct {
	pubsub *redisx.TypedPubSub[ports.BalanceSnapshot]
}

func NewBalancePublisher(client goredis.UniversalClient) *BalancePublisher {
	return &BalancePublisher{pubsub: redisx.NewTypedPubSub[ports.BalanceSnapshot](client, nil)}
}

func (p *BalancePublisher) PublishBalance(ctx context.Context, snapshot ports.BalanceSnapshot) error {
	return p.pubsub.Publish(ctx, redisx.BalanceChannel(snapshot.UserID), snapshot)
}
