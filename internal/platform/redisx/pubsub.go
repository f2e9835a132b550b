package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

const balanceChannelPrefix = "balance.updated:"

// BalanceChannel is the per-user channel balance snapshots are published on.
func BalanceChannel(userID string) string {
	return balanceChannelPrefix + userID
}

// TypedPubSub publishes and receives JSON messages of one type.
type TypedPubSub[T any] struct {
	client goredis.UniversalClient
	logger *slog.Logger
}

func NewTypedPubSub[T any](client goredis.UniversalClient, logger *slog.Logger) *TypedPubSub[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &TypedPubSub[T]{client: client, logger: logger}
}

func (p *TypedPubSub[T]) Publish(ctx context.Context, channel string, msg T) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal pubsub payload: %w", err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

// Subscribe blocks delivering messages to handler until ctx is cancelled.
// Undecodable messages are logged and skipped.
func (p *TypedPubSub[T]) Subscribe(ctx context.Context, channel string, handler func(T)) error {
	sub := p.client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to redis: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var payload T
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				p.logger.Warn("redis pubsub payload undecodable",
					"event", "redis_pubsub_unmarshal_failed",
					"module", "platform/redisx",
					"layer", "platform",
					"channel", channel,
					"error", err.Error(),
				)
				continue
			}
			handler(payload)
		}
	}
}
