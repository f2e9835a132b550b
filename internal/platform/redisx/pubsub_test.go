package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	UserID string `json:"user_id"`
	Stars  int64  `json:"stars"`
}

func TestTypedPubSubRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := NewUniversalClient(ctx, Config{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	defer client.Close()

	pubsub := NewTypedPubSub[sample](client, nil)
	received := make(chan sample, 1)
	done := make(chan error, 1)
	go func() {
		done <- pubsub.Subscribe(ctx, BalanceChannel("u1"), func(msg sample) {
			received <- msg
		})
	}()

	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels("balance.updated:*")) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, pubsub.Publish(ctx, BalanceChannel("u1"), sample{UserID: "u1", Stars: 40}))

	select {
	case msg := <-received:
		assert.Equal(t, sample{UserID: "u1", Stars: 40}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestParseAddrs(t *testing.T) {
	assert.Equal(t, []string{"a:6379", "b:6379"}, ParseAddrs(" a:6379, ,b:6379 "))
	assert.Empty(t, ParseAddrs(""))
}
